package sheet

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/pallet-allocator/internal/dispatch"
)

const (
	AllocationSheet = "Allocation"
	UnplacedSheet   = "Unplaced"
)

var (
	allocationHeaders = []interface{}{"Product Code", "Quantity", "Carrier", "Carrier Type", "Letter", "Carrier Number", "Logistic Key"}
	unplacedHeaders   = []interface{}{"Product Code", "Logistic Key", "Quantity", "Ratio", "Reason", "Detail"}
)

// Build renders an outcome as a workbook with an allocation and an unplaced sheet.
func Build(outcome dispatch.Outcome) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), AllocationSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name allocation sheet: %w", err)
	}
	if _, err := f.NewSheet(UnplacedSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create unplaced sheet: %w", err)
	}

	if err := setRow(f, AllocationSheet, 1, allocationHeaders); err != nil {
		_ = f.Close()
		return nil, err
	}
	for i, row := range outcome.Rows {
		values := []interface{}{row.ProductCode, row.Quantity, row.CarrierName, row.CarrierType, row.Letter, row.CarrierNumber, row.LogisticKey}
		if err := setRow(f, AllocationSheet, i+2, values); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	if err := setRow(f, UnplacedSheet, 1, unplacedHeaders); err != nil {
		_ = f.Close()
		return nil, err
	}
	for i, u := range outcome.Unplaced {
		values := []interface{}{u.ProductCode, u.LogisticKey, u.Quantity, u.Ratio, string(u.Reason), u.Detail}
		if err := setRow(f, UnplacedSheet, i+2, values); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return f, nil
}

// WriteTo streams the workbook of outcome to w.
func WriteTo(w io.Writer, outcome dispatch.Outcome) error {
	f, err := Build(outcome)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileSink saves the outcome of a run as a workbook at Path.
type FileSink struct {
	Path string
}

// Write saves the outcome as a workbook at Path.
func (s FileSink) Write(_ context.Context, outcome dispatch.Outcome) error {
	f, err := Build(outcome)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.SaveAs(s.Path); err != nil {
		return fmt.Errorf("save workbook %q: %w", s.Path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}
