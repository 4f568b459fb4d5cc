package loaders

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/systmms/secretbox/internal/secure"
	"github.com/systmms/secretbox/pkg/loader"
)

// decodePayload parses a secret payload holding a JSON object into a flat
// string map. An empty payload or JSON null decodes to an empty map. The
// payload is decoded inside a locked buffer that is wiped afterwards.
func decodePayload(payload []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(bytes.TrimSpace(payload)) == 0 {
		return out, nil
	}

	err := secure.WithPlaintext(payload, func(b []byte) error {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()

		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			// Never echo the payload: the decoder error may quote it.
			return fmt.Errorf("%w: payload is not a JSON object", loader.ErrMalformedPayload)
		}
		if dec.More() {
			return fmt.Errorf("%w: trailing data after JSON object", loader.ErrMalformedPayload)
		}
		for key, value := range raw {
			str, err := stringify(value)
			if err != nil {
				return fmt.Errorf("%w: field %q: %v", loader.ErrMalformedPayload, key, err)
			}
			out[key] = str
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodePayloadString(payload string) (map[string]string, error) {
	return decodePayload([]byte(payload))
}

// stringify coerces a decoded JSON value to its string form.
func stringify(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
