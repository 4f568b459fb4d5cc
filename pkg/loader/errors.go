package loader

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure classes. Loaders log these and report false from LoadValues.
var (
	// ErrDependencyUnavailable means the client capability for a source is
	// missing, so the loader is disabled.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrConfigurationMissing means a required identifier (store name,
	// region, file name) could not be resolved. No fetch is attempted.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrCredentialsMissing means the provider could not find credentials.
	ErrCredentialsMissing = errors.New("credentials missing")

	// ErrProviderRejected means the provider answered with a structured
	// error such as not-found, access-denied or throttling.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrMalformedPayload means the secret payload was not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")
)

// ProviderError carries the structured details of a failed source call.
//
// Example:
//
//	err := &loader.ProviderError{
//	    Loader:  "awssecret",
//	    Kind:    loader.ErrProviderRejected,
//	    Code:    "ResourceNotFoundException",
//	    Message: "Secrets Manager can't find the specified secret.",
//	}
//	errors.Is(err, loader.ErrProviderRejected) // true
type ProviderError struct {
	// Loader is the name of the loader that made the call.
	Loader string

	// Kind is one of the sentinel errors of this package.
	Kind error

	// Code is the provider's error code, when it reports one.
	Code string

	// Message is the provider's error message.
	Message string

	// Metadata holds response details such as request id and HTTP status.
	Metadata map[string]string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Loader)
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Code != "" || e.Message != "" {
		fmt.Fprintf(&b, ": %s - %s", e.Code, e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Metadata) > 0 {
		fmt.Fprintf(&b, " (%s)", e.MetadataString())
	}
	return b.String()
}

// Unwrap exposes both the failure class and the cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// MetadataString renders Metadata as sorted key=value pairs.
func (e *ProviderError) MetadataString() string {
	keys := make([]string, 0, len(e.Metadata))
	for key := range e.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+e.Metadata[key])
	}
	return strings.Join(parts, ", ")
}

// Classify returns the sentinel failure class of err, or nil when err does
// not carry one.
func Classify(err error) error {
	for _, kind := range []error{
		ErrDependencyUnavailable,
		ErrConfigurationMissing,
		ErrCredentialsMissing,
		ErrProviderRejected,
		ErrMalformedPayload,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
