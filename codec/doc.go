// Package codec converts single field values between their local typed form
// and the engine-native encoding selected by the field's properties.
//
// The two directions are DatabaseValue (local → engine) and LocalValue
// (engine → local). Both are total over the closed DataType set: every branch
// handles the engine-null sentinel (nil), and date-time fields honor the four
// alternative encodings plus native pass-through. The zero time.Time is the
// one documented lossy case: it always marshals to the null marker.
//
// EscapeString and EscapeValue exist only for engines used without parameter
// binding; parameterized statements never pass through them.
package codec
