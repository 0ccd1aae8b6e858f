package internal

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
)

type Result[T any] struct {
	Value T
	Error error
}

// ParseCSV yields one converted value per CSV record. When hasHeader is set
// the first record is passed to the converter as headers rather than data.
// Iteration stops after the first error.
func ParseCSV[T any](r io.Reader, hasHeader bool, fromCSV func(record, headers []string) (T, error)) iter.Seq[Result[T]] {
	return func(yield func(Result[T]) bool) {
		reader := csv.NewReader(r)
		reader.Comment = '#'
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true

		var headers []string
		if hasHeader {
			record, err := reader.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Result[T]{Error: err})
				}
				return
			}
			headers = record
		}

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Result[T]{Error: err})
				return
			}

			value, err := fromCSV(record, headers)
			if !yield(Result[T]{Value: value, Error: err}) || err != nil {
				return
			}
		}
	}
}
