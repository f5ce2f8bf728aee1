package validation

import (
	"strings"

	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
)

const maxComponentLength = 128

// ValidatePathComponent checks that a project, accession or tag can be used
// as a single file name component under the output root.
func ValidatePathComponent(field, value string, allowEmpty bool) error {
	if value == "" {
		if allowEmpty {
			return nil
		}
		return apperrors.InvalidSession(field + " must not be empty")
	}
	if strings.TrimSpace(value) != value {
		return apperrors.InvalidSession(field + " must not start or end with whitespace")
	}
	if len(value) > maxComponentLength {
		return apperrors.InvalidSession(field + " is too long")
	}
	if value == "." || value == ".." {
		return apperrors.InvalidSession(field + " must not be a relative path element")
	}
	if strings.ContainsAny(value, `/\:*?"<>|`) {
		return apperrors.InvalidSession(field + " contains characters not allowed in a file name")
	}
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			return apperrors.InvalidSession(field + " contains control characters")
		}
	}
	return nil
}
