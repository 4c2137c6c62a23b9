// Package numbering allocates the human readable document numbers used on
// quotes, orders and invoices: <PREFIX>-<year>-<seq>, the sequence restarting
// every year and zero padded to three digits.
package numbering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a numbered document family.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindOrder   Kind = "order"
	KindInvoice Kind = "invoice"
)

var prefixes = map[Kind]string{
	KindQuote:   "DEV",
	KindOrder:   "CMD",
	KindInvoice: "FAC",
}

var (
	// ErrUnknownKind is returned for kinds outside quote/order/invoice.
	ErrUnknownKind = errors.New("numbering: unknown document kind")
	// ErrConflict signals that an allocated number was already taken.
	ErrConflict = errors.New("numbering: number already allocated")
	// ErrMalformed is returned by Parse.
	ErrMalformed = errors.New("numbering: malformed document number")
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := prefixes[k]
	return ok
}

// Prefix returns DEV, CMD or FAC.
func (k Kind) Prefix() string {
	return prefixes[k]
}

// Format renders a document number. Sequences above 999 are not truncated.
func Format(kind Kind, year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", kind.Prefix(), year, seq)
}

// Pattern returns the SQL LIKE pattern matching every number of kind in year.
func Pattern(kind Kind, year int) string {
	return fmt.Sprintf("%s-%d-%%", kind.Prefix(), year)
}

// Parse splits a document number into its parts.
func Parse(number string) (Kind, int, int, error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	var kind Kind
	for k, p := range prefixes {
		if p == parts[0] {
			kind = k
		}
	}
	if kind == "" {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrUnknownKind, parts[0])
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return "", 0, 0, fmt.Errorf("%w: year in %q", ErrMalformed, number)
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 1 || len(parts[2]) < 3 {
		return "", 0, 0, fmt.Errorf("%w: sequence in %q", ErrMalformed, number)
	}
	return kind, year, seq, nil
}
