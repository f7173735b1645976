package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"OCR_ENGINE", "CATALOG_DRIVER", "MONGODB_URI", "SEARCH_MAX_RESULTS", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OCREngine != "tesseract" || cfg.CatalogDriver != "mongo" {
		t.Errorf("engine=%q driver=%q", cfg.OCREngine, cfg.CatalogDriver)
	}
	if cfg.MaxUploadBytes != 4*1024*1024 || cfg.SearchMaxResults != 20 || cfg.SearchPhraseKeywords != 3 {
		t.Errorf("unexpected limits: %+v", cfg)
	}
	if cfg.HasOpenAI() {
		t.Error("HasOpenAI() should be false without a key")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "unknown engine", env: map[string]string{"OCR_ENGINE": "abacus"}, want: "OCR_ENGINE"},
		{name: "documentai without processor", env: map[string]string{"OCR_ENGINE": "documentai", "GOOGLE_CLOUD_PROJECT": "p", "DOCUMENT_AI_PROCESSOR_ID": ""}, want: "DOCUMENT_AI_PROCESSOR_ID"},
		{name: "postgres without url", env: map[string]string{"CATALOG_DRIVER": "postgres", "DATABASE_URL": ""}, want: "DATABASE_URL"},
		{name: "unknown driver", env: map[string]string{"CATALOG_DRIVER": "sqlite"}, want: "CATALOG_DRIVER"},
		{name: "non-positive results", env: map[string]string{"SEARCH_MAX_RESULTS": "-1"}, want: "SEARCH_MAX_RESULTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "45")
	if got := getEnvDuration("TEST_TIMEOUT", time.Second); got != 45*time.Second {
		t.Errorf("bare seconds = %v", got)
	}
	t.Setenv("TEST_TIMEOUT", "1m30s")
	if got := getEnvDuration("TEST_TIMEOUT", time.Second); got != 90*time.Second {
		t.Errorf("duration = %v", got)
	}
	t.Setenv("TEST_TIMEOUT", "soon")
	if got := getEnvDuration("TEST_TIMEOUT", time.Second); got != time.Second {
		t.Errorf("invalid value should fall back, got %v", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_ORIGINS", " http://a.test , ,http://b.test")
	got := getEnvList("TEST_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("getEnvList() = %v", got)
	}
}
