package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Vendors disagree on whether numbers are quoted, so the wire types accept both.

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.TrimSpace(string(s))
	if str == "" {
		*i = 0
		return nil
	}
	if v, err := strconv.ParseInt(str, 10, 64); err == nil {
		*i = flexInt(v)
		return nil
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return fmt.Errorf("invalid integer %q", str)
	}
	*i = flexInt(d.IntPart())
	return nil
}

type flexDecimal struct {
	decimal.Decimal
}

func (d *flexDecimal) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.TrimSpace(string(s))
	if str == "" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(str)
	if err != nil {
		return fmt.Errorf("invalid decimal %q", str)
	}
	d.Decimal = v
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

type errorEnvelope struct {
	Error flexString `json:"error"`
}

type balanceResponse struct {
	Balance  flexDecimal `json:"balance"`
	Currency string      `json:"currency"`
}

type addResponse struct {
	Order flexString `json:"order"`
}

type statusResponse struct {
	Status     string      `json:"status"`
	Remains    flexInt     `json:"remains"`
	StartCount flexInt     `json:"start_count"`
	Charge     flexDecimal `json:"charge"`
	Currency   string      `json:"currency"`
	Error      flexString  `json:"error"`
}

type refillResponse struct {
	Refill flexString `json:"refill"`
}

type cancelItem struct {
	Order  flexString      `json:"order"`
	Cancel json.RawMessage `json:"cancel"`
}

type serviceItem struct {
	Service  flexString  `json:"service"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Rate     flexDecimal `json:"rate"`
	Min      flexInt     `json:"min"`
	Max      flexInt     `json:"max"`
	Refill   flexBool    `json:"refill"`
	Cancel   flexBool    `json:"cancel"`
}

// vendorError extracts the "error" field of an object payload.
func vendorError(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}
	msg := strings.TrimSpace(string(env.Error))
	return msg, msg != ""
}

// cancelAccepted interprets the cancel field: 1/"1"/true accept, an object
// with error rejects.
func cancelAccepted(raw json.RawMessage) (bool, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, "empty cancel response"
	}
	if raw[0] == '{' {
		if msg, ok := vendorError(raw); ok {
			return false, msg
		}
		return false, "unrecognized cancel response"
	}
	var ok flexBool
	if err := ok.UnmarshalJSON(raw); err != nil {
		return false, err.Error()
	}
	if !ok {
		return false, "cancel rejected"
	}
	return true, ""
}
