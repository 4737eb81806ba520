package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mapper.Threshold != 3 {
		t.Errorf("threshold = %v, want 3", cfg.Mapper.Threshold)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("format = %q, want csv", cfg.Output.Format)
	}
	if cfg.Reducer.Partitions != 1 {
		t.Errorf("partitions = %d, want 1", cfg.Reducer.Partitions)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
mapper:
  threshold: 2.5
  accentMap:
    "à": "a"
output:
  format: tsv
  maxTerms: 20
fetcher:
  requestTimeout: 3s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RT_OUTPUT_DIR", "/tmp/out")
	t.Setenv("RT_KAFKA_BROKERS", "b1:9092,b2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mapper.Threshold != 2.5 {
		t.Errorf("threshold = %v", cfg.Mapper.Threshold)
	}
	if cfg.Mapper.AccentMap["à"] != "a" {
		t.Errorf("accent map = %v", cfg.Mapper.AccentMap)
	}
	if cfg.Output.Format != "tsv" || cfg.Output.MaxTerms != 20 {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Fetcher.RequestTimeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Fetcher.RequestTimeout)
	}
	if cfg.Output.Dir != "/tmp/out" {
		t.Errorf("env override not applied: %q", cfg.Output.Dir)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	// defaults survive a partial file
	if cfg.Fetcher.PageLimit != 50 {
		t.Errorf("pageLimit = %d, want default 50", cfg.Fetcher.PageLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Output.Format = "xlsx" }},
		{"bad sink", func(c *Config) { c.Sink.Kind = "mongo" }},
		{"zero workers", func(c *Config) { c.Mapper.Workers = 0 }},
		{"negative max terms", func(c *Config) { c.Output.MaxTerms = -1 }},
		{"zero partitions", func(c *Config) { c.Reducer.Partitions = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperrors.ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
