package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsNotFoundError reports whether err means the requested row does not
// exist. Postgres implementations wrap gorm.ErrRecordNotFound into
// entity-specific messages, so the string check covers those too.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	return strings.Contains(err.Error(), "not found")
}
