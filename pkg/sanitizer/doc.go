// Package sanitizer cleans user input before validation and masks
// recipients before they are logged.
//
// Functions are small and composable:
//
//	clean := sanitizer.Compose(sanitizer.RemoveControlChars, sanitizer.Trim)
//	title := clean(req.Title)
//
// NormalizeEmail and NormalizePhone canonicalise recipients; MaskEmail and
// MaskPhone hide them in logs.
package sanitizer
