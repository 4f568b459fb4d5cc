package logging

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// Redacted replaces every argument rewritten by SecretsFilter.
const Redacted = "REDACTED"

// filterSecretsOff is the process-wide SecretsFilter switch. The zero
// value keeps filtering on.
var filterSecretsOff atomic.Bool

// SetFilterSecrets toggles SecretsFilter process-wide. Leave it on outside
// of debugging the SDK itself. Safe to call while channels are logging.
func SetFilterSecrets(on bool) {
	filterSecretsOff.Store(!on)
}

// FilterSecrets reports whether SecretsFilter rewrites records.
func FilterSecrets() bool {
	return !filterSecretsOff.Load()
}

// redactMarkers identify records carrying raw HTTP request/response content.
// "body" and "headers" cover generic transports; the AWS SDK prefixes its
// wire dumps with "Request" and "Response".
var redactMarkers = []string{"body", "headers", "Request", "Response"}

// SecretsFilter hides raw HTTP content that may include decrypted secrets.
// Records above debug level pass untouched. Debug records whose message
// contains a marker get every positional arg and every field value replaced
// with "REDACTED", keeping the argument count and field keys. It never drops
// a record.
func SecretsFilter(rec *Record) bool {
	if rec.Level > zapcore.DebugLevel || !FilterSecrets() {
		return true
	}
	if !hasRedactMarker(rec.Message) {
		return true
	}

	if len(rec.Args) > 0 {
		args := make([]interface{}, len(rec.Args))
		for i := range args {
			args[i] = Redacted
		}
		rec.Args = args
	}
	if len(rec.Fields) > 0 {
		fields := make(map[string]interface{}, len(rec.Fields))
		for key := range rec.Fields {
			fields[key] = Redacted
		}
		rec.Fields = fields
	}
	return true
}

func hasRedactMarker(msg string) bool {
	for _, marker := range redactMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
