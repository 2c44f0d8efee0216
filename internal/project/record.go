package project

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

// Record is an extracted invoice with the legacy Russian keys and project
// fields that reports and product cards read.
type Record struct {
	Invoice llm.Invoice

	InvoiceNumber reconcile.Value // номер_счета
	Supplier      string          // поставщик
	Sum           reconcile.Value // сумма

	Project Info
}

// Date returns the "дата" key when the model produced one.
func (r Record) Date() string {
	raw, ok := r.Invoice.Extra["дата"]
	if !ok {
		return ""
	}
	var v reconcile.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v.String()
}

// ProjectNumber is the project number, falling back to NotFound.
func (r Record) ProjectNumber() string {
	if r.Project.Number == "" {
		return NotFound
	}
	return r.Project.Number
}

// Adapt fills the legacy keys from the schema keys. Legacy keys already
// present in the model output are kept.
func Adapt(inv llm.Invoice) Record {
	rec := Record{Invoice: inv}

	rec.InvoiceNumber = extraValue(inv, "номер_счета")
	if rec.InvoiceNumber.String() == "" && !inv.Number.IsNull() {
		rec.InvoiceNumber = inv.Number
	}

	rec.Supplier = extraValue(inv, "поставщик").String()
	if rec.Supplier == "" && inv.Supplier != nil {
		rec.Supplier = inv.Supplier.Name.String()
	}

	rec.Sum = extraValue(inv, "сумма")
	if rec.Sum.String() == "" && inv.Total != nil {
		rec.Sum = inv.Total.Amount
	}
	return rec
}

// Enrich adapts every invoice, attaches the project found from dir and
// normalizes supplier names through repl.
func Enrich(invs []llm.Invoice, dir string, repl *Replacements, logger *slog.Logger) []Record {
	if logger == nil {
		logger = slog.Default()
	}
	info := ParseFolder(dir, logger)
	out := make([]Record, 0, len(invs))
	for _, inv := range invs {
		rec := Adapt(inv)
		rec.Project = info
		if name := strings.TrimSpace(rec.Supplier); name != "" {
			rec.Supplier = repl.Replace(name)
		}
		out = append(out, rec)
	}
	return out
}

func extraValue(inv llm.Invoice, key string) reconcile.Value {
	raw, ok := inv.Extra[key]
	if !ok {
		return reconcile.Null()
	}
	var v reconcile.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return reconcile.Null()
	}
	return v
}

// MarshalJSON writes the invoice keys followed by the legacy and project keys.
func (r Record) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(r.Invoice)
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	put := func(k string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[k] = b
		return nil
	}
	if !r.InvoiceNumber.IsNull() {
		if err := put("номер_счета", r.InvoiceNumber); err != nil {
			return nil, err
		}
	}
	if r.Supplier != "" {
		if err := put("поставщик", r.Supplier); err != nil {
			return nil, err
		}
	}
	if !r.Sum.IsNull() {
		if err := put("сумма", r.Sum); err != nil {
			return nil, err
		}
	}
	for k, v := range map[string]string{
		"номер":          r.ProjectNumber(),
		"номер_договора": r.ProjectNumber(),
		"заказчик":       r.Project.Customer,
		"адрес":          r.Project.Address,
		"изделие":        r.Project.Product,
	} {
		if err := put(k, v); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}
