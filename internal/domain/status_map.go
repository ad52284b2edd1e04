package domain

import "strings"

// DefaultVendorStatuses maps the vocabulary most reseller panels report.
// Providers override or extend it through Provider.StatusMap.
var DefaultVendorStatuses = map[string]OrderStatus{
	"pending":     StatusProcessing,
	"processing":  StatusInProgress,
	"in progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"in_progress": StatusInProgress,
	"active":      StatusInProgress,
	"completed":   StatusCompleted,
	"complete":    StatusCompleted,
	"success":     StatusCompleted,
	"partial":     StatusPartial,
	"canceled":    StatusCancelled,
	"cancelled":   StatusCancelled,
	"refunded":    StatusCancelled,
	"fail":        StatusCancelled,
	"failed":      StatusCancelled,
}

func normalizeVendorStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MapVendorStatus resolves a vendor status string against the provider
// overrides first, then the default table.
func MapVendorStatus(vendorStatus string, overrides map[string]OrderStatus) (OrderStatus, bool) {
	key := normalizeVendorStatus(vendorStatus)
	if key == "" {
		return "", false
	}
	for k, v := range overrides {
		if normalizeVendorStatus(k) == key {
			return v, true
		}
	}
	st, ok := DefaultVendorStatuses[key]
	return st, ok
}
