package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateKeyErr reports whether err is a unique-constraint violation.
// gorm translates these to ErrDuplicatedKey when the driver supports it; the
// string checks cover drivers without an error translator.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
