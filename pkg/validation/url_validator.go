package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
)

// URLValidator checks network camera snapshot URLs
type URLValidator struct {
	allowedSchemes map[string]bool
	allowedHosts   map[string]bool // empty allows any host
}

// NewURLValidator accepts http and https snapshot URLs on any host
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithOptions([]string{"http", "https"}, nil)
}

// NewURLValidatorWithOptions restricts schemes and, when hosts is non-empty, hostnames
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	v := &URLValidator{
		allowedSchemes: make(map[string]bool, len(schemes)),
		allowedHosts:   make(map[string]bool, len(hosts)),
	}
	for _, s := range schemes {
		v.allowedSchemes[strings.ToLower(s)] = true
	}
	for _, h := range hosts {
		v.allowedHosts[strings.ToLower(h)] = true
	}
	return v
}

// ValidateCameraURL is called before a network camera is opened
func (v *URLValidator) ValidateCameraURL(cameraURL string) error {
	raw := strings.TrimSpace(cameraURL)
	if raw == "" {
		return apperrors.NewValidationError("camera URL cannot be empty", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return apperrors.NewValidationError("camera URL is malformed", err)
	}

	switch {
	case !v.allowedSchemes[strings.ToLower(u.Scheme)]:
		return apperrors.NewValidationError("camera URL scheme "+u.Scheme+" not allowed", nil)
	case u.Hostname() == "":
		return apperrors.NewValidationError("camera URL has no host", nil)
	case len(v.allowedHosts) > 0 && !v.allowedHosts[strings.ToLower(u.Hostname())]:
		return apperrors.NewValidationError("camera host "+u.Hostname()+" not allowed", nil)
	}
	return nil
}
