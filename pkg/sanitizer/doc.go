// Package sanitizer normalizes user-supplied text before validation and
// storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back empty so that the validator rejects it.
//
// Normalization includes:
//   - Names and free text: trim, collapse inner whitespace
//   - Keys (languages, governorates, weekdays): as above, then lower-case
//   - Phone numbers: E.164 (+[country][number]), Egyptian numbers by default
//   - Slices: normalized, without duplicates and empty values
package sanitizer
