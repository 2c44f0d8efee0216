package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joseph-ayodele/invoice-reconciler/internal/project"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

// money prints 1234.5 as "1,234.50".
var money = message.NewPrinter(language.English)

// ProductCard builds the "КАРТОЧКА ИЗДЕЛИЯ" text for a set of enriched
// invoices. Project fields come from the first record. Empty input gives "".
func ProductCard(recs []project.Record, now time.Time) string {
	if len(recs) == 0 {
		return ""
	}

	lines := []string{"КАРТОЧКА ИЗДЕЛИЯ\n", strings.Repeat("=", 50), ""}
	first := recs[0]
	lines = append(lines,
		"Номер проекта: "+first.ProjectNumber(),
		"Заказчик: "+first.Project.Customer,
		"Адрес: "+first.Project.Address,
		"Изделие: "+first.Project.Product,
		"",
		"СЧЕТА:",
		strings.Repeat("-", 30),
	)

	var total float64
	for i, r := range recs {
		supplier := r.Supplier
		if supplier == "" {
			supplier = "Неизвестно"
		}
		lines = append(lines, fmt.Sprintf("\n%d. Счет от %s", i+1, supplier))
		if !r.InvoiceNumber.IsNull() {
			lines = append(lines, "   Номер: "+r.InvoiceNumber.String())
		}
		if d := r.Date(); d != "" {
			lines = append(lines, "   Дата: "+d)
		}
		if !r.Sum.IsNull() {
			if amount, ok := reconcile.ParseQuantity(r.Sum.String()); ok {
				total += amount
				lines = append(lines, "   Сумма: "+money.Sprintf("%.2f", amount)+" руб.")
			} else {
				lines = append(lines, "   Сумма: "+r.Sum.String())
			}
		}
	}

	if total > 0 {
		lines = append(lines, "\nОБЩАЯ СУММА: "+money.Sprintf("%.2f", total)+" руб.")
	}
	lines = append(lines, "\nДата формирования: "+now.Format("02.01.2006 15:04"))
	return strings.Join(lines, "\n")
}
