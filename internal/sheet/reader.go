package sheet

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

type field int

const (
	fieldProduct field = iota
	fieldQuantity
	fieldRatio
	fieldLogistic
	fieldChannel
	fieldLabel
	fieldVariety
	fieldClient
	fieldDate
	fieldPriority
)

var headerAliases = map[string]field{
	"productcode":  fieldProduct,
	"product":      fieldProduct,
	"code":         fieldProduct,
	"quantity":     fieldQuantity,
	"qty":          fieldQuantity,
	"boxes":        fieldQuantity,
	"ratio":        fieldRatio,
	"footprint":    fieldRatio,
	"logistickey":  fieldLogistic,
	"logistic":     fieldLogistic,
	"channel":      fieldChannel,
	"channelcode":  fieldChannel,
	"label":        fieldLabel,
	"variety":      fieldVariety,
	"client":       fieldClient,
	"clientid":     fieldClient,
	"shippingdate": fieldDate,
	"date":         fieldDate,
	"priority":     fieldPriority,
}

var requiredFields = map[field]string{
	fieldProduct:  "product code",
	fieldQuantity: "quantity",
	fieldRatio:    "ratio",
	fieldLogistic: "logistic key",
}

var dateLayouts = []string{domain.DateLayout, "2006-01-02", "01-02-06", "2006-01-02 15:04:05"}

// Reader maps the rows of an order sheet onto order lines using its header row.
type Reader struct {
	sheet  string
	logger *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithSheet reads the named sheet instead of the first one.
func WithSheet(name string) ReaderOption {
	return func(r *Reader) {
		r.sheet = name
	}
}

// NewReader constructs a Reader.
func NewReader(logger *zap.Logger, opts ...ReaderOption) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile opens the workbook at path and returns its order lines.
func (r *Reader) ReadFile(path string) ([]domain.OrderLine, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return r.parse(f)
}

// Read parses a workbook from src.
func (r *Reader) Read(src io.Reader) ([]domain.OrderLine, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	return r.parse(f)
}

func (r *Reader) parse(f *excelize.File) ([]domain.OrderLine, error) {
	name := r.sheet
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheet
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row: %w", name, ErrMissingColumn)
	}

	columns := mapHeaders(rows[0])
	for fld, label := range requiredFields {
		if _, ok := columns[fld]; !ok {
			return nil, fmt.Errorf("sheet %q: %s: %w", name, label, ErrMissingColumn)
		}
	}

	var lines []domain.OrderLine
	for i := 1; i < len(rows); i++ {
		cell := func(fld field) string {
			idx, ok := columns[fld]
			if !ok || idx >= len(rows[i]) {
				return ""
			}
			return strings.TrimSpace(rows[i][idx])
		}

		code := cell(fieldProduct)
		if code == "" {
			continue
		}

		line := domain.OrderLine{
			ProductCode: code,
			Ratio:       cell(fieldRatio),
			LogisticKey: cell(fieldLogistic),
			ChannelCode: cell(fieldChannel),
			Label:       cell(fieldLabel),
			Variety:     cell(fieldVariety),
			ClientID:    cell(fieldClient),
		}
		if line.Quantity, err = parseInt(cell(fieldQuantity)); err != nil {
			r.logger.Warn("unreadable quantity", zap.String("sheet", name), zap.Int("row", i+1), zap.String("product_code", code))
		}
		if raw := cell(fieldPriority); raw != "" {
			if line.Priority, err = parseInt(raw); err != nil {
				r.logger.Warn("unreadable priority", zap.String("sheet", name), zap.Int("row", i+1), zap.String("product_code", code))
			}
		}
		if raw := cell(fieldDate); raw != "" {
			date, ok := parseDate(raw)
			if !ok {
				r.logger.Warn("unreadable shipping date", zap.String("sheet", name), zap.Int("row", i+1), zap.String("value", raw))
			}
			line.ShippingDate = date
		}
		lines = append(lines, line)
	}

	r.logger.Debug("order sheet read", zap.String("sheet", name), zap.Int("lines", len(lines)))
	return lines, nil
}

// FileSource reads the order lines of a run from a workbook on disk.
type FileSource struct {
	Path   string
	Reader *Reader
}

// Lines reads the order lines from the workbook at Path.
func (s FileSource) Lines(context.Context) ([]domain.OrderLine, error) {
	return s.Reader.ReadFile(s.Path)
}

func mapHeaders(header []string) map[field]int {
	columns := make(map[field]int)
	for idx, h := range header {
		key := normalizeHeader(h)
		fld, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, taken := columns[fld]; !taken {
			columns[fld] = idx
		}
	}
	return columns
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	// numeric cells may come back as "12.0"
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return int(f), nil
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
