// Package schema describes record layouts and reconciles them against live
// result-set metadata.
//
// A RowLayout is the ordered, immutable description of a record's fields. It
// is computed once, at bind or open time, and compared against the layout an
// engine actually reports using CheckLayout. Two layouts are compatible iff
// they have equal field counts and every reconciled field pair is equal.
//
// The type tags here (DataType, DateTimeType, DateTimeKind) are the contract
// between declared record shapes and the value codec; they are a closed set.
package schema
