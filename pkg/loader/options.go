package loader

import "sort"

// Recognized option keys.
const (
	OptAWSStoreName  = "aws_sstore_name"
	OptAWSRegionName = "aws_region_name"

	OptAWSEndpointURL     = "aws_endpoint_url"
	OptAWSAccessKeyID     = "aws_access_key_id"
	OptAWSSecretAccessKey = "aws_secret_access_key"

	OptFilename = "filename"

	OptGCPProjectID       = "gcp_project_id"
	OptGCPSecretName      = "gcp_secret_name"
	OptGCPSecretVersion   = "gcp_secret_version"
	OptGCPCredentialsFile = "gcp_credentials_file"

	OptAzureVaultURL      = "azure_vault_url"
	OptAzureSecretName    = "azure_secret_name"
	OptAzureSecretVersion = "azure_secret_version"

	OptKeyringService = "keyring_service"
	OptKeyringAccount = "keyring_account"

	OptAkeylessAccessID   = "akeyless_access_id"
	OptAkeylessAccessKey  = "akeyless_access_key"
	OptAkeylessSecretPath = "akeyless_secret_path"
	OptAkeylessGatewayURL = "akeyless_gateway_url"
)

// EnvFallbacks lists, per option key, the environment variables consulted
// in order when the option is not given explicitly.
var EnvFallbacks = map[string][]string{
	OptAWSStoreName:    {"AWS_SSTORE_NAME"},
	OptAWSRegionName:   {"AWS_REGION_NAME", "AWS_REGION"},
	OptFilename:        {"SECRETBOX_ENV_FILE"},
	OptGCPProjectID:    {"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT"},
	OptGCPSecretName:   {"GCP_SECRET_NAME"},
	OptAzureVaultURL:   {"AZURE_KEYVAULT_URL"},
	OptAzureSecretName: {"AZURE_SECRET_NAME"},
	OptKeyringService:  {"SECRETBOX_KEYRING_SERVICE"},
	OptKeyringAccount:  {"SECRETBOX_KEYRING_ACCOUNT"},

	OptAkeylessAccessID:   {"AKEYLESS_ACCESS_ID"},
	OptAkeylessAccessKey:  {"AKEYLESS_ACCESS_KEY"},
	OptAkeylessSecretPath: {"AKEYLESS_SECRET_PATH"},
	OptAkeylessGatewayURL: {"AKEYLESS_GATEWAY_URL"},
}

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Options is the per-invocation set of loader options. Loaders ignore keys
// they do not recognize. Options are never mutated by loaders.
type Options map[string]string

// NewOptions builds Options from alternating key/value pairs. A trailing key
// without a value is ignored.
func NewOptions(pairs ...string) Options {
	opts := make(Options, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		opts[pairs[i]] = pairs[i+1]
	}
	return opts
}

// Lookup returns the explicit value for key and whether it was provided.
// An explicitly provided empty string reports true.
func (o Options) Lookup(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	value, ok := o[key]
	return value, ok
}

// Get returns the explicit value for key or "".
func (o Options) Get(key string) string {
	value, _ := o.Lookup(key)
	return value
}

// Resolve applies the option precedence: the explicit option for key, then
// each environment variable in envKeys in order. It reports false when no
// source provided a value.
func (o Options) Resolve(key string, lookup LookupFunc, envKeys ...string) (string, bool) {
	if value, ok := o.Lookup(key); ok {
		return value, true
	}
	if lookup == nil {
		return "", false
	}
	for _, envKey := range envKeys {
		if value, ok := lookup(envKey); ok {
			return value, true
		}
	}
	return "", false
}

// ResolveEnv is Resolve with the environment variables from EnvFallbacks.
func (o Options) ResolveEnv(key string, lookup LookupFunc) (string, bool) {
	return o.Resolve(key, lookup, EnvFallbacks[key]...)
}

// Origin names where ResolveEnv finds key: "option", the environment
// variable name, or "" when unset.
func (o Options) Origin(key string, lookup LookupFunc) string {
	if _, ok := o.Lookup(key); ok {
		return "option"
	}
	if lookup == nil {
		return ""
	}
	for _, envKey := range EnvFallbacks[key] {
		if _, ok := lookup(envKey); ok {
			return envKey
		}
	}
	return ""
}

// Merge returns a new Options with other layered over o.
func (o Options) Merge(other Options) Options {
	out := make(Options, len(o)+len(other))
	for key, value := range o {
		out[key] = value
	}
	for key, value := range other {
		out[key] = value
	}
	return out
}

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for key := range o {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
