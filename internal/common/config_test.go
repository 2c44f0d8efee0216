package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.OCR.DPI)
	assert.Equal(t, 2, cfg.OCR.PoolWorkers)
	assert.True(t, cfg.OCR.UsePreprocessing)
	assert.Equal(t, 2000, cfg.OCR.MaxWidth)
	assert.Equal(t, 2000, cfg.OCR.MaxHeight)
	assert.InDelta(t, 1.2, cfg.OCR.Contrast, 1e-9)
	assert.False(t, cfg.OCR.Denoise)
	assert.Equal(t, "ru,en", cfg.OCR.Langs)
	assert.True(t, cfg.OCR.Paragraph)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Parallel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OCR_POOL_WORKERS", "6")
	t.Setenv("OCR_DENOISE", "true")
	t.Setenv("OCR_LANGS", "en")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "15s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.OCR.PoolWorkers)
	assert.True(t, cfg.OCR.Denoise)
	assert.Equal(t, "en", cfg.OCR.Langs)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	require.NoError(t, cfg.ValidateLLM())
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	path := filepath.Join(t.TempDir(), "reconciler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ocr:\n  dpi: 300\n  engine: gosseract\npipeline:\n  parallel: 2\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, "gosseract", cfg.OCR.Engine)
	assert.Equal(t, 2, cfg.Pipeline.Parallel)
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.OCR.PoolWorkers = 0
	err = cfg.Validate()
	require.Error(t, err)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	cfg.OCR.PoolWorkers = 2
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.ValidateLLM())
}
