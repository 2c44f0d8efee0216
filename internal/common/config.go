package common

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	LogLevel string         `mapstructure:"log_level"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `mapstructure:"url"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds daemon listener configuration
type ServerConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
	InboxDir string `mapstructure:"inbox_dir"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	DPI              int     `mapstructure:"dpi"`
	PoolWorkers      int     `mapstructure:"pool_workers"`
	UsePreprocessing bool    `mapstructure:"use_preprocessing"`
	MaxWidth         int     `mapstructure:"max_width"`
	MaxHeight        int     `mapstructure:"max_height"`
	Contrast         float64 `mapstructure:"contrast"`
	Brightness       float64 `mapstructure:"brightness"`
	Sharpness        float64 `mapstructure:"sharpness"`
	Denoise          bool    `mapstructure:"denoise"`
	Langs            string  `mapstructure:"langs"`
	Detail           int     `mapstructure:"detail"`
	Paragraph        bool    `mapstructure:"paragraph"`
	Engine           string  `mapstructure:"engine"`
	MinTextLength    int     `mapstructure:"min_text_length"`
	Tesseract        string  `mapstructure:"tesseract"`
	Pdftoppm         string  `mapstructure:"pdftoppm"`
	TessdataDir      string  `mapstructure:"tessdata_dir"`
}

// LLMConfig holds OpenRouter configuration
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RPM         int           `mapstructure:"rpm"`
	Referrer    string        `mapstructure:"referrer"`
	Title       string        `mapstructure:"title"`
}

// PipelineConfig holds orchestration settings
type PipelineConfig struct {
	ReportTemplatePath       string `mapstructure:"report_template_path"`
	SupplierReplacementsPath string `mapstructure:"supplier_replacements_path"`
	Parallel                 int    `mapstructure:"parallel"`
}

type setting struct {
	key string
	env string
	def any
}

var settings = []setting{
	{"database.url", "DB_URL", ""},
	{"database.max_conns", "DB_MAX_CONNS", 20},
	{"database.min_conns", "DB_MIN_CONNS", 2},
	{"database.max_conn_lifetime", "DB_MAX_CONN_LIFETIME", 30 * time.Minute},
	{"database.max_conn_idle_time", "DB_MAX_CONN_IDLE_TIME", 5 * time.Minute},
	{"database.dial_timeout", "DB_DIAL_TIMEOUT", 3 * time.Second},
	{"database.statement_timeout", "DB_STATEMENT_TIMEOUT", time.Duration(0)},

	{"server.grpc_addr", "GRPC_ADDR", ":8080"},
	{"server.http_addr", "HTTP_ADDR", ":8081"},
	{"server.inbox_dir", "INBOX_DIR", ""},

	{"ocr.dpi", "OCR_DPI", 500},
	{"ocr.pool_workers", "OCR_POOL_WORKERS", 2},
	{"ocr.use_preprocessing", "OCR_USE_PREPROCESSING", true},
	{"ocr.max_width", "OCR_MAX_WIDTH", 2000},
	{"ocr.max_height", "OCR_MAX_HEIGHT", 2000},
	{"ocr.contrast", "OCR_CONTRAST", 1.2},
	{"ocr.brightness", "OCR_BRIGHTNESS", 1.1},
	{"ocr.sharpness", "OCR_SHARPNESS", 1.1},
	{"ocr.denoise", "OCR_DENOISE", false},
	{"ocr.langs", "OCR_LANGS", "ru,en"},
	{"ocr.detail", "OCR_DETAIL", 0},
	{"ocr.paragraph", "OCR_PARAGRAPH", true},
	{"ocr.engine", "OCR_ENGINE", "tesseract"},
	{"ocr.min_text_length", "OCR_MIN_TEXT_LENGTH", 10},
	{"ocr.tesseract", "TESSERACT_BIN", "tesseract"},
	{"ocr.pdftoppm", "PDFTOPPM_BIN", "pdftoppm"},
	{"ocr.tessdata_dir", "TESSDATA_PREFIX", ""},

	{"llm.api_key", "OPENROUTER_API_KEY", ""},
	{"llm.base_url", "OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"},
	{"llm.model", "OPENROUTER_MODEL", "qwen/qwen-2.5-72b-instruct:free"},
	{"llm.temperature", "LLM_TEMPERATURE", 0.1},
	{"llm.timeout", "LLM_TIMEOUT", 60 * time.Second},
	{"llm.rpm", "LLM_RPM", 20},
	{"llm.referrer", "APP_REFERRER", "https://local.parser.app"},
	{"llm.title", "APP_TITLE", "ParserGUI"},

	{"pipeline.report_template_path", "REPORT_TEMPLATE_PATH", ""},
	{"pipeline.supplier_replacements_path", "SUPPLIER_REPLACEMENTS_PATH", "supplier_replacements.yaml"},
	{"pipeline.parallel", "PARSER_PARALLEL", 4},

	{"log_level", "LOG_LEVEL", "info"},
}

// LoadConfig loads configuration from defaults, an optional YAML file, a
// .env file and the environment, in increasing order of precedence.
// An empty path falls back to CONFIG_FILE; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", s.env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	if c.OCR.PoolWorkers <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_POOL_WORKERS must be positive", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(c.OCR.Langs) == "" {
		return NewAppError("CONFIG_ERROR", "OCR_LANGS is required", ErrInvalidInput)
	}
	if c.Pipeline.Parallel <= 0 {
		return NewAppError("CONFIG_ERROR", "PARSER_PARALLEL must be positive", ErrInvalidInput)
	}
	return nil
}

// ValidateLLM checks settings needed by commands that call the LLM.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_BASE_URL is required", ErrInvalidInput)
	}
	return nil
}
