package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

const (
	sheetMatches   = "Совпадения"
	sheetOnlyInApp = "Только в заявке"
	sheetOnlyInInv = "Только в счете"
)

func yesNo(ok bool) string {
	if ok {
		return "да"
	}
	return "нет"
}

// ExportComparisonXLSX returns a workbook (as bytes) with one sheet per
// result list.
func ExportComparisonXLSX(appName, invName string, res reconcile.Result, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	ctx := NewContext(appName, invName, res)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	matches := make([][]any, 0, len(ctx.Matches))
	for _, m := range ctx.Matches {
		matches = append(matches, []any{m.Article, m.AppQty, m.AppUnit, m.InvQty, m.InvUnit, yesNo(m.SameQty), yesNo(m.SameUnit)})
	}
	appOnly := make([][]any, 0, len(ctx.OnlyInApp))
	for _, a := range ctx.OnlyInApp {
		appOnly = append(appOnly, []any{a.Article, a.AppQty, a.AppUnit})
	}
	invOnly := make([][]any, 0, len(ctx.OnlyInInv))
	for _, b := range ctx.OnlyInInv {
		invOnly = append(invOnly, []any{b.Article, b.InvQty, b.InvUnit})
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{sheetMatches, []string{"Артикул", "Кол-во (" + ctx.AppName + ")", "Ед. (" + ctx.AppName + ")", "Кол-во (" + ctx.InvName + ")", "Ед. (" + ctx.InvName + ")", "Кол-во совпадает", "Ед. совпадает"}, matches},
		{sheetOnlyInApp, []string{"Артикул", "Кол-во", "Ед."}, appOnly},
		{sheetOnlyInInv, []string{"Артикул", "Кол-во", "Ед."}, invOnly},
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, err
		}
		for col, h := range s.headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			_ = f.SetCellValue(s.name, cell, h)
		}
		for r, row := range s.rows {
			for col, v := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				_ = f.SetCellValue(s.name, cell, v)
			}
		}
		_ = f.SetColWidth(s.name, "A", "A", 24)
		_ = f.SetColWidth(s.name, "B", "G", 16)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("comparison workbook written",
		"matches", len(ctx.Matches),
		"only_in_app", len(ctx.OnlyInApp),
		"only_in_inv", len(ctx.OnlyInInv),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
