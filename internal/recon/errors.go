package recon

import "fmt"

// UnsupportedSymbolError is returned when an exchange symbol does not end in
// any recognized quote asset. Callers skip the symbol and continue the run.
type UnsupportedSymbolError struct {
	Symbol string
}

func (e *UnsupportedSymbolError) Error() string {
	return fmt.Sprintf("unsupported symbol %q: no recognized quote asset suffix", e.Symbol)
}

// MalformedFillError marks a single raw fill that is missing or has an
// unparsable required field. The fill is skipped; the rest of the symbol's
// stream is still processed.
type MalformedFillError struct {
	Symbol string
	Index  int
	Field  string
	Err    error
}

func (e *MalformedFillError) Error() string {
	return fmt.Sprintf("malformed fill %s[%d]: bad %s: %v", e.Symbol, e.Index, e.Field, e.Err)
}

func (e *MalformedFillError) Unwrap() error {
	return e.Err
}
