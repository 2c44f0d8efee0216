package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-reconciler/internal/artifacts"
	"github.com/joseph-ayodele/invoice-reconciler/internal/project"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
)

const (
	batchJSONName  = "invoices_extracted.json"
	reportMDName   = "comparison_report.md"
	reportHTMLName = "comparison_report.html"
	reportXLSXName = "comparison.xlsx"
	cardName       = "Карточка изделия.txt"
)

// SaveResults writes the run outputs into dir and registers each written
// file in reg. Records are saved one JSON file per source name when the
// counts agree, otherwise all together in invoices_extracted.json. The
// report files are written only when cmp is not nil. It returns the
// written paths in write order, including on error.
func (p *Processor) SaveResults(dir string, names []string, recs []project.Record, cmp *reconcile.Result, md, appName, invName string, reg *artifacts.Registry) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out := []string{}
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if reg != nil {
			reg.Register(path)
		}
		out = append(out, path)
		p.Logger.Debug("result saved", "path", path, "bytes", len(data))
		return nil
	}

	if len(recs) > 0 && len(recs) == len(names) {
		for i, rec := range recs {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return out, fmt.Errorf("encode %s: %w", names[i], err)
			}
			if err := write(baseName(names[i])+"_extracted.json", data); err != nil {
				return out, err
			}
		}
	} else if len(recs) > 0 {
		data, err := json.MarshalIndent(recs, "", "  ")
		if err != nil {
			return out, fmt.Errorf("encode invoices: %w", err)
		}
		if err := write(batchJSONName, data); err != nil {
			return out, err
		}
	}

	if cmp != nil {
		if err := write(reportMDName, []byte(md)); err != nil {
			return out, err
		}
		body, err := report.ToHTML(md)
		if err != nil {
			return out, err
		}
		if err := write(reportHTMLName, []byte(report.Page("Сравнение: "+appName+" / "+invName, body))); err != nil {
			return out, err
		}
		book, err := report.ExportComparisonXLSX(appName, invName, *cmp, p.Logger)
		if err != nil {
			return out, err
		}
		if err := write(reportXLSXName, book); err != nil {
			return out, err
		}
	}

	if card := report.ProductCard(recs, p.now()); card != "" {
		if err := write(cardName, []byte(card)); err != nil {
			return out, err
		}
	}
	return out, nil
}
