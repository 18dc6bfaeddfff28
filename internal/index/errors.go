package index

import "fmt"

// FormatError reports input that is not a well-formed API index.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed api index: %s: %v", e.Reason, e.Err)
	}
	return "malformed api index: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// UnsupportedVersionError reports a format_version outside the supported range.
type UnsupportedVersionError struct {
	Version int
	Min     int
	Max     int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported format_version %d (supported %d..%d)", e.Version, e.Min, e.Max)
}

// DanglingReferenceError reports an identifier that is referenced but neither
// defined in the index nor flagged as external.
type DanglingReferenceError struct {
	ID ID
	// From is the item holding the reference; empty for the document root.
	From ID
	// Field names the referencing field, e.g. "items" or "visibility.parent".
	Field string
}

func (e *DanglingReferenceError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("dangling reference %q in %s", e.ID, e.Field)
	}
	return fmt.Sprintf("dangling reference %q in %s of item %q", e.ID, e.Field, e.From)
}

// ItemError reports an item record that could not be fully decoded. The item
// is still loaded: as Other when its kind or body is unreadable, with default
// visibility when the visibility form is unknown.
type ItemError struct {
	ID  ID
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("malformed item %q: %v", e.ID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
