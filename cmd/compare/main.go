package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-reconciler/internal/app"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		format  = flag.String("format", "markdown", "output format: markdown, json, html or xlsx")
		out     = flag.String("out", "", "output file (stdout when empty; required for xlsx)")
		tmpl    = flag.String("template", "", "report template (overrides REPORT_TEMPLATE_PATH)")
		preview = flag.Bool("preview", false, "render markdown for the terminal")
	)
	flag.Usage = func() {
		printError("usage: compare [flags] <application.json> <invoice.json>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := common.LoadConfig("")
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel, false)

	appPath, invPath := flag.Arg(0), flag.Arg(1)
	appDoc, err := readDocument(appPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	invDoc, err := readDocument(invPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	res := reconcile.CompareDocuments(appDoc, invDoc)
	appName, invName := filepath.Base(appPath), filepath.Base(invPath)

	if *tmpl == "" {
		*tmpl = cfg.Pipeline.ReportTemplatePath
	}
	renderer, err := report.NewRenderer(*tmpl, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	var data []byte
	switch *format {
	case "json":
		data, err = json.MarshalIndent(res, "", "  ")
	case "markdown", "html":
		var md string
		md, err = renderer.RenderComparison(appName, invName, res)
		if err == nil && *format == "html" {
			var body string
			body, err = report.ToHTML(md)
			md = report.Page("Сравнение: "+appName+" / "+invName, body)
		} else if err == nil && *preview {
			md, err = report.Preview(md, "", 100)
		}
		data = []byte(md)
	case "xlsx":
		if *out == "" {
			printError("Error: -out is required for xlsx\n")
			os.Exit(2)
		}
		data, err = report.ExportComparisonXLSX(appName, invName, res, logger)
	default:
		printError("Error: unknown format %q\n", *format)
		os.Exit(2)
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		_, _ = os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("comparison written", "path", *out, "matches", len(res.Matches), "only_in_app", len(res.OnlyInApp), "only_in_inv", len(res.OnlyInInv))
}

// readDocument accepts either a document object or an extracted invoice
// file with extra keys.
func readDocument(path string) (reconcile.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return reconcile.Document{}, err
	}
	var doc reconcile.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return reconcile.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
