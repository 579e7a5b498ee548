// Package errors maps errors to low-cardinality labels for metric tags and log fields.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	apperrors "github.com/commandcenter/inboxauth/internal/errors"
)

// Classify returns a stable label for err. Sign-in errors map to their category, application
// errors to their code, and anything else to the snake_cased type name of the innermost error.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if cat := domainauth.Classify(err); cat != domainauth.CategoryNone && isDomainError(err) {
		return string(cat)
	}
	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) {
		return "app_" + string(appErr.Code)
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}

var domainSentinels = []error{
	domainauth.ErrMissingCode,
	domainauth.ErrExchangeFailed,
	domainauth.ErrIdentityUnavailable,
	domainauth.ErrPersistenceFailed,
	domainauth.ErrNoStoredToken,
	domainauth.ErrMissingToken,
	domainauth.ErrInvalidSession,
	domainauth.ErrSessionExpired,
	domainauth.ErrNotFound,
	domainauth.ErrTokenCollision,
}

func isDomainError(err error) bool {
	for _, s := range domainSentinels {
		if goerrors.Is(err, s) {
			return true
		}
	}
	return false
}
