package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// DocumentText is one extracted document handed to the model.
type DocumentText struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

var errNoDocuments = errors.New("document list is empty")

const invoiceFields = `- number (номер %[1]s)
- supplier (объект с ключами name, inn, kpp, address, phone)
- items (массив объектов с ключами article, description, quantity, unit, price, discount, amount)
- total (объект с ключами amount_without_discount, discount, amount)
`

// KindOf returns the role of document i among n documents. Only the first
// of exactly two documents can be an application.
func KindOf(i, n int, filename string) constants.DocKind {
	if i == 0 && n == 2 {
		if constants.LooksLikeApplication(filename) {
			return constants.DocApplication
		}
		return constants.DocGeneric
	}
	return constants.DocInvoice
}

func documentBlock(kind constants.DocKind, filename, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", kind.Title(), filename)
	fmt.Fprintf(&b, "Извлеки из этого текста номер %s, поставщика, список позиций (артикул, наименование, количество, ед., цена, сумма) и итоговую сумму. Верни результат в формате JSON со следующими ключами:\n", kind.Genitive())
	fmt.Fprintf(&b, invoiceFields, kind.Genitive())
	b.WriteString("Текст:\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}

// BuildMultiInvoicePrompt asks for one JSON object per document, returned
// as a JSON array.
func BuildMultiInvoicePrompt(docs []DocumentText) (string, error) {
	if len(docs) == 0 {
		return "", errNoDocuments
	}
	blocks := make([]string, 0, len(docs))
	for i, d := range docs {
		name := d.Filename
		if name == "" {
			name = "unknown"
		}
		blocks = append(blocks, documentBlock(KindOf(i, len(docs), name), name, d.Text))
	}
	header := fmt.Sprintf("Ниже приведены тексты %d документов. Для каждого верни отдельный JSON строго с указанными выше ключами. "+
		"Формат ответа: [ { ... }, { ... }, ... ]\n", len(docs))
	return header + strings.Join(blocks, "\n"), nil
}

// BuildSingleInvoicePrompt is the prompt for one invoice.
func BuildSingleInvoicePrompt(filename, text string) string {
	return documentBlock(constants.DocInvoice, filename, text)
}

// BuildComparisonReportPrompt asks the model to render template with the
// given context, treating obvious typos in articles as matches.
func BuildComparisonReportPrompt(template string, context any) (string, error) {
	ctx, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report context: %w", err)
	}
	var b strings.Builder
	b.WriteString("Ты помощник по формированию отчётов. Ниже дан шаблон Markdown и JSON-контекст.\n")
	b.WriteString("Сгенерируй финальный Markdown-отчёт строго по шаблону, без дополнительных комментариев.\n\n")
	b.WriteString("Важно: при сопоставлении позиций учитывай, что если различия между строками вызваны только явной опечаткой,\n")
	b.WriteString("то такие позиции следует считать совпадающими.\n")
	b.WriteString("Под опечаткой понимаются, в частности: путаница 0/O, 1/l/I, различие регистра, одиночная замена/пропуск/вставка символа,\n")
	b.WriteString("замена близких символов (например, русская/латинская буква). Если различие меняет смысл артикула, это уже не совпадение.\n\n")
	b.WriteString("Шаблон (Markdown):\n````\n")
	b.WriteString(template)
	b.WriteString("\n````\n\nКонтекст JSON:\n```json\n")
	b.Write(ctx)
	b.WriteString("\n```\n\nВерни только Markdown-результат (без обёрток кода).")
	return b.String(), nil
}
