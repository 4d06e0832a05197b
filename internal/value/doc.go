// Package value defines the data that flows along graph edges.
//
// This package contains leaf types only. Every other internal package may
// import value; value imports nothing internal.
//
// Key design constraints:
//   - Value is sealed: Null, Number, String and Object are the only variants
//   - Object wraps a shared Handle; payloads are read-only once produced
//   - Mutating a payload requires Mutate, which always works on a clone
//   - Same compares by identity (scalars by value, objects by handle)
//   - Canonical encoding sorts dict keys by UTF-16 code units and NFC
//     normalizes strings, so fingerprints are stable across runs
package value
