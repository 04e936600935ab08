// Package bind associates a key type and a record type with a named backing
// table, validating the association once at bind time.
//
// The record shape is an explicit Descriptor (field properties plus
// accessors) rather than anything derived by runtime inspection per call.
// Strict mode requires the declared layout to match the backing layout
// field for field; lenient mode resolves each declared field to a backing
// field by name, re-pointing its physical index, and rejects ambiguous or
// missing resolutions. In both modes the identifier field must round-trip
// through the key type without value loss, and on success the binder fixes
// the table's effective layout for all subsequent calls.
package bind
