package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

// Supplier of an invoice.
type Supplier struct {
	Name    reconcile.Value `json:"name"`
	INN     reconcile.Value `json:"inn"`
	KPP     reconcile.Value `json:"kpp"`
	Address reconcile.Value `json:"address"`
	Phone   reconcile.Value `json:"phone"`
}

type Total struct {
	AmountWithoutDiscount reconcile.Value `json:"amount_without_discount"`
	Discount              reconcile.Value `json:"discount"`
	Amount                reconcile.Value `json:"amount"`
}

// Invoice is one document extracted by the model. Keys outside the schema
// are kept in Extra and written back on marshal.
type Invoice struct {
	Number   reconcile.Value
	Supplier *Supplier
	Items    []reconcile.Item
	Total    *Total
	Extra    map[string]json.RawMessage
}

var knownInvoiceKeys = map[string]bool{"number": true, "supplier": true, "items": true, "total": true}

// Document returns the invoice as a reconcile input.
func (inv Invoice) Document() reconcile.Document {
	return reconcile.Document{Items: inv.Items}
}

func (inv *Invoice) UnmarshalJSON(b []byte) error {
	var known struct {
		Number   reconcile.Value  `json:"number"`
		Supplier *Supplier        `json:"supplier"`
		Items    []reconcile.Item `json:"items"`
		Total    *Total           `json:"total"`
	}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	*inv = Invoice{Number: known.Number, Supplier: known.Supplier, Items: known.Items, Total: known.Total}
	for k, v := range all {
		if knownInvoiceKeys[k] {
			continue
		}
		if inv.Extra == nil {
			inv.Extra = make(map[string]json.RawMessage)
		}
		inv.Extra[k] = v
	}
	return nil
}

// MarshalJSON omits absent fields.
func (inv Invoice) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(inv.Extra)+4)
	for k, v := range inv.Extra {
		out[k] = v
	}
	if !inv.Number.IsNull() {
		out["number"] = inv.Number
	}
	if inv.Supplier != nil {
		out["supplier"] = inv.Supplier
	}
	if inv.Items != nil {
		out["items"] = inv.Items
	}
	if inv.Total != nil {
		out["total"] = inv.Total
	}
	return json.Marshal(out)
}

// scalar accepts what the model tends to emit for any leaf: "5,0", 5 or null.
func scalar() map[string]any {
	return map[string]any{"type": []any{"string", "number", "null"}}
}

func objectOf(keys ...string) map[string]any {
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = scalar()
	}
	return map[string]any{
		"type":       []any{"object", "null"},
		"properties": props,
	}
}

// InvoiceSchema describes one extracted invoice. Every field is optional and
// additional keys are allowed.
func InvoiceSchema() map[string]any {
	item := objectOf("article", "description", "quantity", "unit", "price", "discount", "amount")
	item["type"] = "object"
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"number":   scalar(),
			"supplier": objectOf("name", "inn", "kpp", "address", "phone"),
			"items": map[string]any{
				"type":  []any{"array", "null"},
				"items": item,
			},
			"total": objectOf("amount_without_discount", "discount", "amount"),
		},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var invoiceSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(InvoiceSchema())
})

// ValidateInvoices decodes a model reply into invoices. A single object is
// treated as a one-element list; elements failing the schema are logged and
// dropped. Anything other than an object or array yields no invoices.
func ValidateInvoices(data []byte, logger *slog.Logger) ([]Invoice, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := invoiceSchema()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("unmarshal invoices: %w", err)
	}
	var list []any
	switch v := root.(type) {
	case map[string]any:
		logger.Info("llm.invoices.single_object_wrapped")
		list = []any{v}
	case []any:
		list = v
	default:
		logger.Warn("llm.invoices.unexpected_type", "type", fmt.Sprintf("%T", root))
		return []Invoice{}, nil
	}

	out := make([]Invoice, 0, len(list))
	for idx, el := range list {
		if err := schema.Validate(el); err != nil {
			logger.Warn("llm.invoices.invalid", "index", idx, "error", err)
			continue
		}
		raw, err := json.Marshal(el)
		if err != nil {
			logger.Warn("llm.invoices.invalid", "index", idx, "error", err)
			continue
		}
		var inv Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			logger.Warn("llm.invoices.invalid", "index", idx, "error", err)
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}
