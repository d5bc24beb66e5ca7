package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("VFM_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("VFM_HOME", "/custom/vfm")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults.ConfigPath != "/custom/config.toml" {
			t.Errorf("ConfigPath = %q, want %q", defaults.ConfigPath, "/custom/config.toml")
		}
		if defaults.BaseDir != "/custom/vfm" {
			t.Errorf("BaseDir = %q, want %q", defaults.BaseDir, "/custom/vfm")
		}
		if defaults.LogDir != "/custom/vfm/log" {
			t.Errorf("LogDir = %q, want %q", defaults.LogDir, "/custom/vfm/log")
		}
		if defaults.SessionPath != "/custom/vfm/session.toml" {
			t.Errorf("SessionPath = %q, want %q", defaults.SessionPath, "/custom/vfm/session.toml")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("VFM_CONFIG_PATH", "")
		t.Setenv("VFM_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "vfm.toml")
		if defaults.ConfigPath != wantConfig {
			t.Errorf("ConfigPath = %q, want %q", defaults.ConfigPath, wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "vfm")
		if defaults.BaseDir != wantBase {
			t.Errorf("BaseDir = %q, want %q", defaults.BaseDir, wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults.LogDir != wantLog {
			t.Errorf("LogDir = %q, want %q", defaults.LogDir, wantLog)
		}
	})
}
