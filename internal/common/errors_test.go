package common

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	err := NewParseError(KindPDF, "/in/scan.pdf", "rasterize failed", io.ErrUnexpectedEOF)

	assert.Equal(t, "pdf: /in/scan.pdf: rasterize failed: unexpected EOF", err.Error())
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	wrapped := fmt.Errorf("process file: %w", err)
	assert.True(t, IsKind(wrapped, KindPDF))
	assert.False(t, IsKind(wrapped, KindExcel))
	assert.False(t, IsKind(io.EOF, KindPDF))
}

func TestParseError_NoPath(t *testing.T) {
	err := NewParseError(KindRecognition, "", "engine failed", nil)
	assert.Equal(t, "recognition: engine failed", err.Error())
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("work_dir", "", Required).
		Field("invoices", []string{" "}, NonEmptySlice).
		Field("model", "m", MaxLength(200))

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)
	assert.Contains(t, v.ErrorMessage(), "work_dir")
	assert.Error(t, ValidateAndReturnError(v))

	ok := NewValidator().Field("workers", 3, Positive)
	assert.NoError(t, ok.Error())
}
