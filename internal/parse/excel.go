package parse

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// ExcelParser renders every sheet of a workbook as tab separated text.
type ExcelParser struct {
	logger *slog.Logger
}

func NewExcelParser(logger *slog.Logger) *ExcelParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelParser{logger: logger}
}

// Parse returns one "--- Лист: <name> ---" block per sheet. Rows are padded
// to the widest row of their sheet and integral numbers lose their ".0".
func (p *ExcelParser) Parse(path string) (string, error) {
	if constants.NormalizeExt(extOf(path)) == "xls" {
		return "", common.NewParseError(common.KindExcel, path, "legacy .xls workbooks are not supported; save as .xlsx", nil)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", common.NewParseError(common.KindExcel, path, "open workbook", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			p.logger.Warn("failed to close workbook", "path", path, "error", err)
		}
	}()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		header := "--- Лист: " + sheet + " ---"
		rows, err := p.sheetRows(f, sheet)
		if err != nil {
			p.logger.Warn("failed to read sheet", "path", path, "sheet", sheet, "error", err)
			blocks = append(blocks, fmt.Sprintf("%s\n[Ошибка чтения листа: %v]", header, err))
			continue
		}
		blocks = append(blocks, header+"\n"+strings.Join(rows, "\n"))
	}
	p.logger.Debug("excel parsed", "path", path, "sheets", len(blocks))
	return strings.Join(blocks, "\n"), nil
}

func (p *ExcelParser) sheetRows(f *excelize.File, sheet string) ([]string, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	out := make([]string, 0, len(rows))
	for ri, r := range rows {
		cells := make([]string, width)
		for ci, v := range r {
			cells[ci] = p.cellText(f, sheet, ci+1, ri+1, v)
		}
		out = append(out, strings.Join(cells, "\t"))
	}
	return out, nil
}

func (p *ExcelParser) cellText(f *excelize.File, sheet string, col, row int, raw string) string {
	if raw == "" {
		return ""
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeBool:
		if raw == "1" {
			return "True"
		}
		return "False"
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return formatNumber(raw)
	default:
		return raw
	}
}

// formatNumber prints integral values without a fractional part.
func formatNumber(raw string) string {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return raw
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
