package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Report.Window != 7*24*time.Hour {
		t.Errorf("Expected one week report window, got %s", cfg.Report.Window)
	}
	if cfg.Ingest.RefreshInterval != time.Hour {
		t.Errorf("Expected hourly refresh, got %s", cfg.Ingest.RefreshInterval)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Expected Redis disabled by default, got %q", cfg.Redis.Addr)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Expected no Kafka brokers by default, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REPORT_CONCURRENCY", "3")
	t.Setenv("INGEST_REFRESH_INTERVAL", "30m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Port != 6543 {
		t.Errorf("Expected port 6543, got %d", cfg.Database.Port)
	}
	if cfg.Report.Concurrency != 3 {
		t.Errorf("Expected concurrency 3, got %d", cfg.Report.Concurrency)
	}
	if cfg.Ingest.RefreshInterval != 30*time.Minute {
		t.Errorf("Expected 30m refresh, got %s", cfg.Ingest.RefreshInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("REPORT_WINDOW", "a week")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default port, got %d", cfg.Database.Port)
	}
	if cfg.Report.Window != 7*24*time.Hour {
		t.Errorf("Expected default window, got %s", cfg.Report.Window)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("REPORT_CONCURRENCY", "0")
	t.Setenv("INGEST_REFRESH_INTERVAL", "-1m")
	t.Setenv("KAFKA_FLUSH_INTERVAL", "0s")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"REPORT_CONCURRENCY", "INGEST_REFRESH_INTERVAL", "KAFKA_FLUSH_INTERVAL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "stores", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=stores sslmode=disable"
	if got := d.ConnectionString(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
