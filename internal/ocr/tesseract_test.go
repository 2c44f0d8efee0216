package ocr

import (
	"context"
	"errors"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t80\t20\t96.5\tСчет\n" +
	"5\t1\t1\t1\t1\t2\t100\t10\t40\t20\t93.5\t№42\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t60\t20\t90\tот\n" +
	"5\t1\t1\t1\t2\t2\t80\t40\t30\t20\t-1\t \n" +
	"5\t1\t2\t1\t1\t1\t10\t100\t50\t20\t80\tИтого\n"

func TestParseTSV_Lines(t *testing.T) {
	frags := ParseTSV(sampleTSV, RecognizeOptions{})
	require.Len(t, frags, 3)
	assert.Equal(t, "Счет №42", frags[0].Text)
	assert.Equal(t, "от", frags[1].Text)
	assert.Equal(t, "Итого", frags[2].Text)
	assert.Zero(t, frags[0].Confidence)
	assert.True(t, frags[0].Box.Empty())
}

func TestParseTSV_ParagraphsWithDetail(t *testing.T) {
	frags := ParseTSV(sampleTSV, RecognizeOptions{Detail: 1, Paragraph: true})
	require.Len(t, frags, 2)
	assert.Equal(t, "Счет №42 от", frags[0].Text)
	assert.Equal(t, image.Rect(10, 10, 140, 60), frags[0].Box)
	assert.InDelta(t, 0.9333, frags[0].Confidence, 1e-3)
	assert.Equal(t, "Итого", frags[1].Text)
}

func TestParseTSV_IgnoresGarbage(t *testing.T) {
	assert.Empty(t, ParseTSV("", RecognizeOptions{}))
	assert.Empty(t, ParseTSV("not\ttsv\n5\t1\n", RecognizeOptions{}))
}

type fakeRunner struct {
	calls  [][]string
	stdout []byte
	err    error
	onRun  func(name string, args []string) error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.onRun != nil {
		if err := r.onRun(name, args); err != nil {
			return nil, []byte("boom"), err
		}
	}
	return r.stdout, nil, r.err
}

func TestTesseractEngine_Recognize(t *testing.T) {
	r := &fakeRunner{stdout: []byte(sampleTSV)}
	r.onRun = func(_ string, args []string) error {
		_, err := os.Stat(args[0])
		return err
	}
	e := NewTesseractEngine("tess", "/data", []string{"ru", "en"}, r)

	frags, err := e.Recognize(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)), RecognizeOptions{Paragraph: true})
	require.NoError(t, err)
	assert.Len(t, frags, 2)

	require.Len(t, r.calls, 1)
	call := r.calls[0]
	assert.Equal(t, "tess", call[0])
	assert.Equal(t, []string{"stdout", "-l", "rus+eng", "--tessdata-dir", "/data", "tsv"}, call[2:])

	_, statErr := os.Stat(call[1])
	assert.True(t, os.IsNotExist(statErr), "temp image removed")
}

func TestTesseractEngine_CommandFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1")}
	e := NewTesseractEngine("", "", nil, r)

	_, err := e.Recognize(context.Background(), image.NewNRGBA(image.Rect(0, 0, 1, 1)), RecognizeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
	assert.Equal(t, []string{"stdout", "tsv"}, r.calls[0][2:])
}

func TestTesseractLanguages(t *testing.T) {
	assert.Equal(t, []string{"rus", "eng"}, TesseractLanguages([]string{"ru", "en"}))
	assert.Equal(t, []string{"deu", "chi_sim"}, TesseractLanguages([]string{" de ", "ch_sim", "deu"}))
	assert.Equal(t, []string{"eng"}, TesseractLanguages([]string{"eng", "", "EN"}))
	assert.Empty(t, TesseractLanguages(nil))
}

func TestNewEngineFactory(t *testing.T) {
	f, err := NewEngineFactory(Config{Engine: EngineTesseract}, quietLogger())
	require.NoError(t, err)
	eng, err := f([]string{"en"})
	require.NoError(t, err)
	assert.IsType(t, &TesseractEngine{}, eng)

	_, err = NewEngineFactory(Config{Engine: "easyocr"}, quietLogger())
	assert.ErrorIs(t, err, errUnknownEngine)
}
