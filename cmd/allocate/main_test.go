package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/pallet-allocator/internal/sheet"
	"github.com/eugenenazirov/pallet-allocator/internal/storage"
)

func writeOrders(t *testing.T, dir string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := row
		if err := f.SetSheetRow(f.GetSheetName(0), cell, &values); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(dir, "orders.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save orders: %v", err)
	}
	return path
}

var header = []any{"Product Code", "Quantity", "Ratio", "Logistic Key", "Channel", "Shipping Date"}

func TestRunExitCodes(t *testing.T) {
	testCases := []struct {
		name string
		rows [][]any
		code int
		kind string
	}{
		{
			name: "Completed",
			rows: [][]any{header, {"A", 20, "20", "G1", "SHOP", "17/10/2026"}, {"B", 10, "10", "G1", "SHOP", "17/10/2026"}},
			code: exitCompleted,
			kind: "completed",
		},
		{
			name: "Partial",
			rows: [][]any{header, {"A", 1, "100", "G1", "SHOP", "17/10/2026"}},
			code: exitPartial,
			kind: "partial",
		},
		{
			name: "EmptyInput",
			rows: [][]any{header, {"A", 5, "abc", "G1", "SHOP", "17/10/2026"}},
			code: exitEmptyInput,
			kind: "empty_input",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			input := writeOrders(t, dir, tc.rows)
			output := filepath.Join(dir, "allocation.xlsx")

			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{
				input, "--output", output, "--env-file", filepath.Join(dir, "none.env"), "--log-level", "error",
			}, &stdout, &stderr)

			if code != tc.code {
				t.Fatalf("expected exit code %d, got %d (stderr: %s)", tc.code, code, stderr.String())
			}
			if !strings.Contains(stdout.String(), tc.kind) {
				t.Fatalf("expected report to mention %q, got %q", tc.kind, stdout.String())
			}

			f, err := excelize.OpenFile(output)
			if err != nil {
				t.Fatalf("open allocation workbook: %v", err)
			}
			defer f.Close()
			if _, err := f.GetRows(sheet.AllocationSheet); err != nil {
				t.Fatalf("read allocation sheet: %v", err)
			}
		})
	}
}

func TestRunPersistsNumbering(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, [][]any{header, {"A", 20, "20", "G1", "SHOP", "17/10/2026"}})
	dbPath := filepath.Join(dir, "allocator.db")
	args := []string{
		input, "--output", filepath.Join(dir, "out.xlsx"), "--db", dbPath,
		"--env-file", filepath.Join(dir, "none.env"), "--log-level", "error",
	}

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), args, &stdout, &stderr); code != exitCompleted {
			t.Fatalf("run %d: expected exit code 0, got %d (stderr: %s)", i, code, stderr.String())
		}
	}

	store, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer store.Close()

	state, err := store.LoadNumbering(context.Background())
	if err != nil {
		t.Fatalf("load numbering: %v", err)
	}
	if state.LastNumber != 2 {
		t.Fatalf("expected two runs to number two carriers, got %+v", state)
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.xlsx")}, &stdout, &stderr); code != exitFatal {
		t.Fatalf("expected exit code %d for a missing input, got %d", exitFatal, code)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected an error message on stderr")
	}
}
