package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// isDuplicate also matches raw driver messages for dialects without error
// translation.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// appendNote concatenates in SQL so concurrent notes never overwrite each other.
func appendNote(note string) any {
	return gorm.Expr("CASE WHEN COALESCE(admin_notes, '') = '' THEN ? ELSE admin_notes || ? END", note, "\n"+note)
}

func appendOrderNote(note string) any {
	return gorm.Expr("CASE WHEN COALESCE(notes, '') = '' THEN ? ELSE notes || ? END", note, "\n"+note)
}
