// Package secure provides memory-safe handling of decrypted secret payloads.
//
// This package wraps the memguard library. Payload bytes are moved into a
// locked buffer (mlock'd, guarded, wiped on destroy) for the short window in
// which a loader decodes them, and the buffer is destroyed as soon as the
// callback returns:
//
//	err := secure.WithPlaintext(payload, func(b []byte) error {
//	    return json.Unmarshal(b, &out)
//	})
//
// The source slice is wiped by the move, so callers must not reuse it.
//
// # Platform Behavior
//
// Memory locking behavior varies by platform:
//
//   - Linux: Requires RLIMIT_MEMLOCK to be set appropriately
//   - macOS: Works out of the box
//   - Windows: Uses VirtualLock
//
// It does NOT protect against:
//
//   - Attackers with root access to the running process
//   - Values copied out of the buffer by the callback (decoded strings
//     live in ordinary Go memory)
package secure
