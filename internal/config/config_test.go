package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"PHOTO_FILES_PATH",
	"PHOTOZIP_PORT",
	"PHOTOZIP_BIND_ADDRESS",
	"PHOTOZIP_LOG_LEVEL",
	"PHOTOZIP_LOG_DIR",
	"PHOTOZIP_COMPRESSOR",
	"PHOTOZIP_SLEEP",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{EnvFile: noEnvFile(t)})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PhotosPath != DefaultPhotosPath {
		t.Errorf("Expected photos path %s, got %s", DefaultPhotosPath, cfg.PhotosPath)
	}
	if cfg.Throttle() != 0 {
		t.Errorf("Expected no throttle, got %s", cfg.Throttle())
	}
	if cfg.URLBase != "/" {
		t.Errorf("Expected URL base /, got %s", cfg.URLBase)
	}
	if cfg.Compressor != CompressorExec || cfg.ZipBinary != "zip" {
		t.Errorf("Unexpected compressor %s %s", cfg.Compressor, cfg.ZipBinary)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected info level, got %s", cfg.LogLevel)
	}
	if cfg.LogDir != DefaultLogDir {
		t.Errorf("Expected log dir %s, got %s", DefaultLogDir, cfg.LogDir)
	}
	if cfg.GetReapTimeout() != DefaultReapTimeout {
		t.Errorf("Expected default reap timeout, got %s", cfg.GetReapTimeout())
	}
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHOTO_FILES_PATH", "/srv/photos")
	t.Setenv("PHOTOZIP_SLEEP", "0.25")
	t.Setenv("PHOTOZIP_COMPRESSOR", "native")

	cfg, err := Load(Options{EnvFile: noEnvFile(t)})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PhotosPath != "/srv/photos" {
		t.Errorf("Expected /srv/photos, got %s", cfg.PhotosPath)
	}
	if cfg.Throttle() != 250*time.Millisecond {
		t.Errorf("Expected 250ms throttle, got %s", cfg.Throttle())
	}
	if cfg.Compressor != CompressorNative {
		t.Errorf("Expected native compressor, got %s", cfg.Compressor)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("PHOTO_FILES_PATH=/data/albums\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PhotosPath != "/data/albums" {
		t.Errorf("Expected path from .env, got %s", cfg.PhotosPath)
	}
}

func TestLoadFileAndFlags(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	data := `{"photos_path": "/from/file", "port": "9000", "url_base": "photos", "sleep": "2s", "max_concurrent": 4}`
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	sleep := 0.5
	cfg, err := Load(Options{ConfigFile: file, EnvFile: noEnvFile(t), Debug: true, Sleep: &sleep})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PhotosPath != "/from/file" || cfg.Port != "9000" || cfg.MaxConcurrent != 4 {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.URLBase != "/photos/" {
		t.Errorf("Expected normalized URL base /photos/, got %s", cfg.URLBase)
	}
	if cfg.Throttle() != 500*time.Millisecond {
		t.Errorf("Expected command line sleep to win, got %s", cfg.Throttle())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.LogLevel)
	}
	if want := filepath.Join(dir, DefaultLogDir); cfg.LogDir != want {
		t.Errorf("Expected log dir %s next to the config file, got %s", want, cfg.LogDir)
	}
	if cfg.Path != file {
		t.Errorf("Expected config path %s, got %s", file, cfg.Path)
	}
}

func TestThrottleParsing(t *testing.T) {
	tests := []struct {
		sleep string
		want  time.Duration
	}{
		{"", 0},
		{"1", time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"250ms", 250 * time.Millisecond},
		{"0", 0},
		{"-1", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		cfg := &Config{Sleep: tt.sleep}
		if err := cfg.Normalize(); err != nil {
			t.Fatalf("Normalize(%q) failed: %v", tt.sleep, err)
		}
		if got := cfg.Throttle(); got != tt.want {
			t.Errorf("Sleep %q: expected %s, got %s", tt.sleep, tt.want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "unknown compressor", cfg: Config{Compressor: "rar"}, wantErr: true},
		{name: "negative concurrency", cfg: Config{MaxConcurrent: -1}, wantErr: true},
		{name: "bad spawn rate", cfg: Config{SpawnRate: "fast"}, wantErr: true},
		{name: "spawn rate", cfg: Config{SpawnRate: "10/second"}},
		{name: "stats interval", cfg: Config{StatsInterval: "1m"}},
		{name: "bad stats interval", cfg: Config{StatsInterval: "often"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Normalize()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseRateLimit(t *testing.T) {
	rate, err := ParseRateLimit("100/minute")
	if err != nil {
		t.Fatalf("ParseRateLimit failed: %v", err)
	}
	if rate.Count != 100 || rate.Per != time.Minute {
		t.Errorf("Unexpected rate %+v", rate)
	}
	for _, bad := range []string{"", "10", "0/second", "x/second", "5/day"} {
		if _, err := ParseRateLimit(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
