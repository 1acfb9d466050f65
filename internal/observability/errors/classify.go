// Package errors maps errors to low-cardinality class names for metric tags and alerts.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
)

// Auth failures are tagged by meaning. Their innermost type would only say errors_errorstring.
var sentinels = []struct {
	err   error
	class string
}{
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
	{domainauth.ErrCorruptCredentialStore, "corrupt_credential_store"},
	{domainauth.ErrThrottled, "throttled"},
	{domainauth.ErrInvalidCredentials, "invalid_credentials"},
	{domainauth.ErrUserNotFound, "user_not_found"},
	{domainauth.ErrIdentifierTaken, "identifier_taken"},
}

// Classify returns a normalized error class suitable for tagging metrics and logs.
//
// Token rejections are tagged token_<reason>. Known auth sentinels get a fixed
// name. Anything else is named after the innermost concrete type, following the
// last cause of a multi-%w wrap, e.g. "net_operror". ErrStoreUnavailable is a
// marker rather than a cause, so its underlying driver error names the class.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if kind := domainauth.TokenErrorKindOf(err); kind != 0 {
		return "token_" + kind.String()
	}
	for _, s := range sentinels {
		if goerrors.Is(err, s.err) {
			return s.class
		}
	}

	err = innermost(err)
	if goerrors.Is(err, domainauth.ErrStoreUnavailable) {
		return "store_unavailable"
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}

func innermost(err error) error {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err
			}
			err = next
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 || errs[len(errs)-1] == nil {
				return err
			}
			err = errs[len(errs)-1]
		default:
			return err
		}
	}
}
