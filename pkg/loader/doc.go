// Package loader defines the contract every secretbox source implements.
//
// A loader reads key/value data from exactly one source (the process
// environment, a .env file, AWS Secrets Manager, the OS keyring, ...) into an
// internal mapping that it owns. The aggregator in pkg/secretbox runs an
// ordered list of loaders and merges their mappings, later loaders winning on
// key collision.
//
// # Contract
//
// Every loader implements three operations plus a name:
//
//   - LoadValues populates the mapping from the source and reports whether
//     the call loaded at least one value. It never panics and never returns
//     an error: anticipated failures are logged and reported as false.
//   - GetValues returns a copy of the current mapping.
//   - ResetValues clears the mapping. Calling it twice is harmless.
//
// Loaders differ in how repeated LoadValues calls behave. The environment
// loader resets and repopulates on every call, so its mapping always mirrors
// the environment at call time. Cloud, file and keyring loaders accumulate:
// each successful call updates the mapping without clearing it.
//
// # Options
//
// Options are passed per invocation and resolved with a fixed precedence:
// an explicit option beats the corresponding environment variable, which
// beats "unset". Use Options.Resolve to apply that rule:
//
//	store, ok := opts.Resolve(loader.OptAWSStoreName, os.LookupEnv, "AWS_SSTORE_NAME")
//	if !ok || store == "" {
//	    // configuration missing
//	}
//
// # Errors
//
// Failures are classified with the sentinel errors in this package
// (ErrDependencyUnavailable, ErrConfigurationMissing, ErrCredentialsMissing,
// ErrProviderRejected, ErrMalformedPayload). Loaders wrap provider details in
// a *ProviderError for logging; those errors never cross the LoadValues
// boundary.
//
// # Implementing a Loader
//
// Embed Values to get GetValues and ResetValues for free:
//
//	type StaticLoader struct {
//	    loader.Values
//	    data map[string]string
//	}
//
//	func (s *StaticLoader) Name() string { return "static" }
//
//	func (s *StaticLoader) LoadValues(ctx context.Context, opts loader.Options) bool {
//	    s.Update(s.data)
//	    return len(s.data) > 0
//	}
//
// The loadertest package provides a contract suite for new implementations.
package loader
