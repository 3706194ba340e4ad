// Package ir provides canonical encoding and content-addressed identity
// for compiled queries.
//
// The store keys every compilation by a hash of its canonical form, and
// replay compares hashes to detect output drift between compiler versions.
// ir imports nothing internal.
//
// Key design constraints:
//   - Canonical JSON follows RFC 8785 (sorted UTF-16 keys, ES number form)
//   - Strings are NFC normalized before encoding and hashing
//   - Every hash is domain separated and versioned
package ir
