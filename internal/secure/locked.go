package secure

import (
	"github.com/awnumar/memguard"
)

// WithPlaintext moves data into a locked buffer, calls fn with its contents
// and destroys the buffer before returning, whatever fn does. data is wiped
// by the move. fn must not retain the slice it receives.
func WithPlaintext(data []byte, fn func(plaintext []byte) error) error {
	buf := memguard.NewBufferFromBytes(data)
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// WithPlaintextString is WithPlaintext for payloads the SDK hands back as a
// string. The string itself cannot be wiped; only the working copy is.
func WithPlaintextString(s string, fn func(plaintext []byte) error) error {
	return WithPlaintext([]byte(s), fn)
}
