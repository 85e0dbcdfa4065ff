package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Index.FrequentQueryCeiling != 1000 {
		t.Errorf("expected ceiling 1000, got %d", cfg.Index.FrequentQueryCeiling)
	}
	if cfg.Retry.MaxAttempts != 10 || cfg.Retry.Delay != 2*time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if math.Abs(cfg.Ranking.Sum()-1) > 1e-9 {
		t.Errorf("default weights sum to %v", cfg.Ranking.Sum())
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
storage:
  driver: postgres
index:
  frequentQueryCeiling: 50
  statistics:
    variance: false
retry:
  maxAttempts: 3
  delay: 10ms
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TI_POSTGRES_HOST", "db.internal")
	t.Setenv("TI_INDEX_FREQUENT_QUERY_CEILING", "75")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("env override not applied, host=%q", cfg.Postgres.Host)
	}
	if cfg.Index.FrequentQueryCeiling != 75 {
		t.Errorf("expected env ceiling 75, got %d", cfg.Index.FrequentQueryCeiling)
	}
	if cfg.Index.Statistics.Variance {
		t.Error("expected variance statistics disabled by yaml")
	}
	if !cfg.Index.Statistics.Average {
		t.Error("expected average statistics to keep its default")
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Delay != 10*time.Millisecond {
		t.Errorf("unexpected retry config: %+v", cfg.Retry)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, true},
		{"zero ceiling", func(c *Config) { c.Index.FrequentQueryCeiling = 0 }, true},
		{"negative weight", func(c *Config) { c.Ranking.Age = -0.1 }, true},
		{"weights not summing to one", func(c *Config) { c.Ranking.Age = 0.5 }, false},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"redis frequent queries", func(c *Config) { c.Storage.FrequentQueries = "redis" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
