package lqerr

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Errors accumulates the user errors of a pass. The nil *Errors is empty
// and every method accepts it.
type Errors struct {
	errs []LqError
}

// With appends errs, skipping nil ones, and returns the accumulator
func (r *Errors) With(errs ...LqError) *Errors {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if r == nil {
			r = &Errors{}
		}
		r.errs = append(r.errs, err)
	}
	return r
}

func (r *Errors) Merge(other *Errors) *Errors {
	if other == nil || len(other.errs) == 0 {
		return r
	}
	return r.With(other.errs...)
}

func (r *Errors) Errors() []LqError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	return len(r.Errors()) > 0
}

// Sorted returns the errors ordered by source position. Positions of a
// token.FileSet grow with file order, so errors of one file stay together.
func (r *Errors) Sorted() []LqError {
	sorted := slices.Clone(r.Errors())
	slices.SortStableFunc(sorted, func(a, b LqError) int {
		return cmp.Compare(a.Pos(), b.Pos())
	})
	return sorted
}

// Error makes Errors usable as an error, one message per line
func (r *Errors) Error() string {
	lines := make([]string, 0, len(r.Errors()))
	for _, err := range r.Errors() {
		lines = append(lines, FormatWithCode(err))
	}
	return strings.Join(lines, "\n")
}

func (r *Errors) LogValue() slog.Value {
	vals := make([]slog.Attr, 0, len(r.Errors()))
	for i, e := range r.Errors() {
		vals = append(vals, slog.Group(fmt.Sprint("e", i),
			slog.String("code", fmt.Sprintf("E%03d", e.Code())),
			slog.String("msg", e.Error()),
		))
	}
	return slog.GroupValue(vals...)
}
