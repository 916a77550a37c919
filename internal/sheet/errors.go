package sheet

import "errors"

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("required column missing")
	// ErrNoSheet is returned when the workbook has no readable sheet.
	ErrNoSheet = errors.New("workbook has no sheet")
)
