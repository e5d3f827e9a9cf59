package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := writeConfig(t, "device:\n  path: /dev/ttyS0\n  speed: 4800\n")

	cfg, err := loadConfig(path, "/dev/ttyUSB1", 115200)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Device.Path != "/dev/ttyUSB1" {
		t.Fatalf("path=%q want flag override", cfg.Device.Path)
	}
	if cfg.Device.Speed != 115200 {
		t.Fatalf("speed=%d want flag override", cfg.Device.Speed)
	}
}

func TestLoadConfigFileOnly(t *testing.T) {
	path := writeConfig(t, "device:\n  path: /dev/ttyS0\n  speed: 4800\n")

	cfg, err := loadConfig(path, "", 0)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Device.Path != "/dev/ttyS0" || cfg.Device.Speed != 4800 {
		t.Fatalf("device=%+v", cfg.Device)
	}
}

func TestLoadConfigRequiresDevice(t *testing.T) {
	if _, err := loadConfig("", "", 9600); err == nil {
		t.Fatal("expected error when no device is given")
	}
}

func TestLoadConfigRejectsUnsupportedRate(t *testing.T) {
	if _, err := loadConfig("", "/dev/ttyUSB0", 14400); err == nil {
		t.Fatal("expected error for unsupported rate")
	}
}
