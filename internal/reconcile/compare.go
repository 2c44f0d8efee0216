// Package reconcile matches line items between an application document and
// an invoice document by normalized article.
package reconcile

import (
	"math"
	"sort"
	"strings"
)

// qtyEpsilon is the tolerance for numeric quantity equality.
const qtyEpsilon = 1e-9

// Item is one line entry of a document. Missing fields decode as null.
type Item struct {
	Article     Value `json:"article"`
	Description Value `json:"description"`
	Quantity    Value `json:"quantity"`
	Unit        Value `json:"unit"`
	Price       Value `json:"price"`
	Discount    Value `json:"discount"`
	Amount      Value `json:"amount"`
}

// Document is anything exposing an items collection.
type Document struct {
	Items []Item `json:"items"`
}

// Match is an article present in both documents.
type Match struct {
	Article  string `json:"article"`
	AppQty   string `json:"app_qty"`
	AppUnit  string `json:"app_unit"`
	InvQty   string `json:"inv_qty"`
	InvUnit  string `json:"inv_unit"`
	SameQty  bool   `json:"same_qty"`
	SameUnit bool   `json:"same_unit"`
}

// AppOnly is an article found only in the application.
type AppOnly struct {
	Article string `json:"article"`
	AppQty  string `json:"app_qty"`
	AppUnit string `json:"app_unit"`
}

// InvOnly is an article found only in the invoice.
type InvOnly struct {
	Article string `json:"article"`
	InvQty  string `json:"inv_qty"`
	InvUnit string `json:"inv_unit"`
}

// Result partitions the union of normalized articles. Every list is
// ordered by normalized article key.
type Result struct {
	Matches   []Match   `json:"matches"`
	OnlyInApp []AppOnly `json:"only_in_app"`
	OnlyInInv []InvOnly `json:"only_in_inv"`
}

type entry struct {
	article string
	qty     Value
	unit    Value
}

// NormalizeArticle returns the matching key for an article.
func NormalizeArticle(article string) string {
	return strings.ToLower(strings.TrimSpace(article))
}

// NormalizeUnit trims a unit label; case is significant.
func NormalizeUnit(unit string) string {
	return strings.TrimSpace(unit)
}

// Compare classifies every article of app and inv into matches,
// application-only and invoice-only. Items with an empty normalized article
// are ignored. A repeated article inside one document keeps its last entry.
func Compare(app, inv []Item) Result {
	appMap := index(app)
	invMap := index(inv)

	keys := make([]string, 0, len(appMap)+len(invMap))
	for k := range appMap {
		keys = append(keys, k)
	}
	for k := range invMap {
		if _, dup := appMap[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := Result{
		Matches:   make([]Match, 0),
		OnlyInApp: make([]AppOnly, 0),
		OnlyInInv: make([]InvOnly, 0),
	}
	for _, key := range keys {
		a, inApp := appMap[key]
		b, inInv := invMap[key]
		switch {
		case inApp && inInv:
			article := a.article
			if article == "" {
				article = b.article
			}
			res.Matches = append(res.Matches, Match{
				Article:  article,
				AppQty:   rawQty(a.qty),
				AppUnit:  NormalizeUnit(a.unit.String()),
				InvQty:   rawQty(b.qty),
				InvUnit:  NormalizeUnit(b.unit.String()),
				SameQty:  SameQuantity(a.qty, b.qty),
				SameUnit: NormalizeUnit(a.unit.String()) == NormalizeUnit(b.unit.String()),
			})
		case inApp:
			res.OnlyInApp = append(res.OnlyInApp, AppOnly{
				Article: a.article,
				AppQty:  rawQty(a.qty),
				AppUnit: NormalizeUnit(a.unit.String()),
			})
		default:
			res.OnlyInInv = append(res.OnlyInInv, InvOnly{
				Article: b.article,
				InvQty:  rawQty(b.qty),
				InvUnit: NormalizeUnit(b.unit.String()),
			})
		}
	}
	return res
}

// CompareDocuments is Compare over two documents' items.
func CompareDocuments(app, inv Document) Result {
	return Compare(app.Items, inv.Items)
}

// SameQuantity is true when both quantities parse and differ by less than
// 1e-9, or when their trimmed raw texts are identical.
func SameQuantity(a, b Value) bool {
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok && math.Abs(af-bf) < qtyEpsilon {
		return true
	}
	return rawQty(a) == rawQty(b)
}

func index(items []Item) map[string]entry {
	m := make(map[string]entry, len(items))
	for _, it := range items {
		key := NormalizeArticle(it.Article.String())
		if key == "" {
			continue
		}
		m[key] = entry{
			article: strings.TrimSpace(it.Article.String()),
			qty:     it.Quantity,
			unit:    it.Unit,
		}
	}
	return m
}

func rawQty(v Value) string {
	return strings.TrimSpace(v.String())
}
