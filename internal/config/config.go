package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pillgenious/internal/catalog"
	"pillgenious/internal/keywords"
	"pillgenious/internal/logger"
	"pillgenious/internal/ocr"
)

type Config struct {
	// OpenAI Configuration (optional: AI keyword extraction degrades without it)
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	AITimeout     time.Duration
	AIMaxTokens   int

	// OCR Configuration
	OCREngine             string
	TesseractLanguage     string
	TesseractPSM          int
	OCRPreprocess         bool
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string
	VisionLanguageHints   []string

	// Catalog Configuration
	CatalogDriver   string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	DatabaseURL     string
	CatalogTable    string

	// HTTP Configuration
	HTTPAddr           string
	MaxUploadBytes     int64
	UploadDir          string
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
	GinMode            string

	// Search Configuration
	SearchMaxResults     int
	SearchPhraseKeywords int

	// Google Sheets Configuration (catalog import)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		AITimeout:             getEnvDuration("AI_TIMEOUT", 15*time.Second),
		AIMaxTokens:           getEnvInt("AI_MAX_TOKENS", keywords.DefaultMaxTokens),
		OCREngine:             getEnv("OCR_ENGINE", ocr.EngineTesseract),
		TesseractLanguage:     getEnv("TESSERACT_LANGUAGE", "eng"),
		TesseractPSM:          getEnvInt("TESSERACT_PSM", 3),
		OCRPreprocess:         getEnvBool("OCR_PREPROCESS", true),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		VisionLanguageHints:   getEnvList("VISION_LANGUAGE_HINTS", nil),
		CatalogDriver:         getEnv("CATALOG_DRIVER", catalog.DriverMongo),
		MongoURI:              getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:         getEnv("MONGODB_DATABASE", "pillgenious"),
		MongoCollection:       getEnv("MONGODB_COLLECTION", "drugs"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		CatalogTable:          getEnv("CATALOG_TABLE", "drugs"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":5000"),
		MaxUploadBytes:        getEnvInt64("MAX_UPLOAD_BYTES", 4*1024*1024),
		UploadDir:             getEnv("UPLOAD_DIR", os.TempDir()),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		GinMode:               getEnv("GIN_MODE", "release"),
		SearchMaxResults:      getEnvInt("SEARCH_MAX_RESULTS", 20),
		SearchPhraseKeywords:  getEnvInt("SEARCH_PHRASE_KEYWORDS", 3),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "Drugs"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case ocr.EngineTesseract, ocr.EngineVision:
	case ocr.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for OCR_ENGINE=%s", c.OCREngine)
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for OCR_ENGINE=%s", c.OCREngine)
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be one of %s, %s, %s (got %q)",
			ocr.EngineTesseract, ocr.EngineVision, ocr.EngineDocumentAI, c.OCREngine)
	}

	switch c.CatalogDriver {
	case catalog.DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for CATALOG_DRIVER=%s", c.CatalogDriver)
		}
	case catalog.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for CATALOG_DRIVER=%s", c.CatalogDriver)
		}
	default:
		return fmt.Errorf("CATALOG_DRIVER must be %s or %s (got %q)",
			catalog.DriverMongo, catalog.DriverPostgres, c.CatalogDriver)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.SearchMaxResults <= 0 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be positive")
	}
	if c.SearchPhraseKeywords <= 0 {
		return fmt.Errorf("SEARCH_PHRASE_KEYWORDS must be positive")
	}
	return nil
}

// HasOpenAI reports whether AI keyword extraction can be enabled
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetOCRConfig returns the text recognizer configuration
func (c *Config) GetOCRConfig() ocr.Config {
	return ocr.Config{
		Engine:        c.OCREngine,
		Language:      c.TesseractLanguage,
		PageSegMode:   c.TesseractPSM,
		Preprocess:    c.OCRPreprocess,
		ProjectID:     c.GoogleCloudProject,
		Location:      c.GoogleCloudLocation,
		ProcessorID:   c.DocumentAIProcessorID,
		LanguageHints: c.VisionLanguageHints,
	}
}

// GetCatalogConfig returns the drug catalog connection configuration
func (c *Config) GetCatalogConfig() catalog.Config {
	return catalog.Config{
		Driver:          c.CatalogDriver,
		MongoURI:        c.MongoURI,
		MongoDatabase:   c.MongoDatabase,
		MongoCollection: c.MongoCollection,
		DatabaseURL:     c.DatabaseURL,
		Table:           c.CatalogTable,
	}
}

// GetOpenAIConfig returns the completion client configuration
func (c *Config) GetOpenAIConfig() keywords.OpenAIConfig {
	return keywords.OpenAIConfig{
		APIKey:    c.OpenAIAPIKey,
		Model:     c.OpenAIModel,
		BaseURL:   c.OpenAIBaseURL,
		MaxTokens: c.AIMaxTokens,
		Timeout:   c.AITimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
