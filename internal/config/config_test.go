package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedLatencies(t *testing.T) {
	cfg := Default()
	if cfg.FPLatency != 3 || cfg.LdLatency != 4 || cfg.StLatency != 10 || cfg.AluLatency != 1 {
		t.Fatalf("default latencies drifted: %+v", cfg)
	}
	if cfg.IWays != 2 || cfg.Banks != 8 {
		t.Fatalf("default cache/bank geometry drifted: %+v", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rv64ui.toml")
	body := "fp = 5\nverify = true\nperf_shm = \"run1\"\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.FPLatency != 5 {
		t.Fatalf("expected fp=5 from file, got %d", cfg.FPLatency)
	}
	if !cfg.Verify {
		t.Fatalf("expected verify=true from file")
	}
	if cfg.PerfShm != "run1" {
		t.Fatalf("expected perf_shm=run1, got %q", cfg.PerfShm)
	}
	// fields the file didn't set should keep their Default() values
	if cfg.LdLatency != 4 {
		t.Fatalf("expected untouched ld latency to keep its default, got %d", cfg.LdLatency)
	}
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	if _, err := LoadFile("/nonexistent/rv64ui.toml"); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
