// Package report renders comparison results and product cards.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

//go:embed templates/comparison.md.tmpl
var defaultTemplate string

// Context is what the comparison template sees.
type Context struct {
	AppName   string              `json:"app_name"`
	InvName   string              `json:"inv_name"`
	Matches   []reconcile.Match   `json:"matches"`
	OnlyInApp []reconcile.AppOnly `json:"only_in_app"`
	OnlyInInv []reconcile.InvOnly `json:"only_in_inv"`
}

// NewContext fills the default names "Заявка" and "Счет" when empty.
func NewContext(appName, invName string, res reconcile.Result) Context {
	if appName == "" {
		appName = "Заявка"
	}
	if invName == "" {
		invName = "Счет"
	}
	return Context{
		AppName:   appName,
		InvName:   invName,
		Matches:   res.Matches,
		OnlyInApp: res.OnlyInApp,
		OnlyInInv: res.OnlyInInv,
	}
}

var funcs = template.FuncMap{
	"mark": func(ok bool) string {
		if ok {
			return "✅"
		}
		return "❌"
	},
}

// Renderer executes the comparison template.
type Renderer struct {
	tmpl   *template.Template
	source string
	logger *slog.Logger
}

// NewRenderer loads the template at path, or the embedded one when path is empty.
func NewRenderer(path string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	src, name := defaultTemplate, "comparison.md"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read report template: %w", err)
		}
		src, name = string(b), path
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse report template %s: %w", name, err)
	}
	return &Renderer{tmpl: tmpl, source: src, logger: logger}, nil
}

// Source returns the template text.
func (r *Renderer) Source() string { return r.source }

// RenderComparison renders the markdown report for one application/invoice pair.
func (r *Renderer) RenderComparison(appName, invName string, res reconcile.Result) (string, error) {
	ctx := NewContext(appName, invName, res)
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, ctx); err != nil {
		r.logger.Error("report render failed", "template", r.tmpl.Name(), "error", err)
		return "", fmt.Errorf("render report: %w", err)
	}
	r.logger.Debug("report rendered",
		"matches", len(ctx.Matches),
		"only_in_app", len(ctx.OnlyInApp),
		"only_in_inv", len(ctx.OnlyInInv),
	)
	return buf.String(), nil
}
