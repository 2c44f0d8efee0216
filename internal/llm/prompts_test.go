package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, constants.DocApplication, KindOf(0, 2, "Заявка 12.xlsx"))
	assert.Equal(t, constants.DocApplication, KindOf(0, 2, "application.pdf"))
	assert.Equal(t, constants.DocGeneric, KindOf(0, 2, "scan.pdf"))
	assert.Equal(t, constants.DocInvoice, KindOf(1, 2, "заявка.pdf"))
	assert.Equal(t, constants.DocInvoice, KindOf(0, 3, "заявка.pdf"))
	assert.Equal(t, constants.DocInvoice, KindOf(0, 1, "заявка.pdf"))
}

func TestBuildMultiInvoicePrompt(t *testing.T) {
	p, err := BuildMultiInvoicePrompt([]DocumentText{
		{Filename: "заявка.xlsx", Text: "A-1\t5"},
		{Filename: "счет 7.pdf", Text: "Счет №7"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p, "Ниже приведены тексты 2 документов."))
	assert.Contains(t, p, "Формат ответа: [ { ... }, { ... }, ... ]")
	assert.Contains(t, p, "Заявка: заявка.xlsx\nИзвлеки из этого текста номер заявки,")
	assert.Contains(t, p, "- number (номер заявки)")
	assert.Contains(t, p, "Счет: счет 7.pdf\n")
	assert.Contains(t, p, "- number (номер счета)")
	assert.Contains(t, p, "Текст:\nСчет №7\n")
	assert.Less(t, strings.Index(p, "A-1"), strings.Index(p, "Счет №7"))
}

func TestBuildMultiInvoicePromptEmpty(t *testing.T) {
	_, err := BuildMultiInvoicePrompt(nil)
	assert.Error(t, err)
}

func TestBuildSingleInvoicePrompt(t *testing.T) {
	p := BuildSingleInvoicePrompt("s.pdf", "body")
	assert.True(t, strings.HasPrefix(p, "Счет: s.pdf\n"))
	assert.Contains(t, p, "items (массив объектов с ключами article, description, quantity, unit, price, discount, amount)")
	assert.True(t, strings.HasSuffix(p, "Текст:\nbody\n"))
}

func TestBuildComparisonReportPrompt(t *testing.T) {
	p, err := BuildComparisonReportPrompt("# {{.AppName}}", map[string]any{"AppName": "заявка.xlsx"})
	require.NoError(t, err)
	assert.Contains(t, p, "# {{.AppName}}")
	assert.Contains(t, p, `"AppName": "заявка.xlsx"`)
	assert.Contains(t, p, "путаница 0/O")
}
