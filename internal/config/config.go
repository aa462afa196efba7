package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirrobot01/photozip/internal/utils"
)

type CompressorKind string

const (
	CompressorExec   CompressorKind = "exec"
	CompressorNative CompressorKind = "native"
)

const (
	DefaultPhotosPath  = "./photos"
	DefaultPort        = "8080"
	DefaultZipBinary   = "zip"
	DefaultLogDir      = "logs"
	DefaultReapTimeout = 5 * time.Second
)

type Config struct {
	// server
	BindAddress string `json:"bind_address,omitempty"`
	URLBase     string `json:"url_base,omitempty"`
	Port        string `json:"port,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
	LogDir   string `json:"log_dir,omitempty"`
	Debug    bool   `json:"debug,omitempty"`

	// archive source
	PhotosPath string `json:"photos_path,omitempty"`

	// Pause between chunks, e.g "1s" or "250ms". Empty means no throttling.
	Sleep string `json:"sleep,omitempty"`

	Compressor  CompressorKind `json:"compressor,omitempty"`
	ZipBinary   string         `json:"zip_binary,omitempty"`
	ReapTimeout string         `json:"reap_timeout,omitempty"`

	MaxConcurrent int    `json:"max_concurrent,omitempty"` // 0 means unlimited
	SpawnRate     string `json:"spawn_rate,omitempty"`     // 5/second, 100/minute
	StatsInterval string `json:"stats_interval,omitempty"` // empty disables the stats job

	Path string `json:"-"` // config file the values were read from, if any

	throttle    time.Duration
	reapTimeout time.Duration
}

// Options carries the values that only the command line can provide.
type Options struct {
	ConfigFile string
	EnvFile    string
	Debug      bool
	Sleep      *float64 // seconds; nil when the flag was not given
}

// Load builds the configuration once at startup: defaults, optional JSON file,
// environment (and .env), then command line overrides.
func Load(opts Options) (*Config, error) {
	c := &Config{}

	envFile := cmp.Or(opts.EnvFile, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
	}

	if opts.ConfigFile != "" {
		if err := c.loadFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	c.loadEnv()

	if opts.Debug {
		c.Debug = true
	}
	if opts.Sleep != nil {
		c.Sleep = FormatSeconds(*opts.Sleep)
	}

	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// Normalize fills defaults and validates. Load calls it; configs built in
// code must call it before use.
func (c *Config) Normalize() error {
	c.setDefaults()
	return c.Validate()
}

func (c *Config) loadFile(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	c.Path = path
	return nil
}

func (c *Config) loadEnv() {
	c.PhotosPath = cmp.Or(os.Getenv("PHOTO_FILES_PATH"), c.PhotosPath)
	c.Port = cmp.Or(os.Getenv("PHOTOZIP_PORT"), c.Port)
	c.BindAddress = cmp.Or(os.Getenv("PHOTOZIP_BIND_ADDRESS"), c.BindAddress)
	c.LogLevel = cmp.Or(os.Getenv("PHOTOZIP_LOG_LEVEL"), c.LogLevel)
	c.LogDir = cmp.Or(os.Getenv("PHOTOZIP_LOG_DIR"), c.LogDir)
	c.Compressor = CompressorKind(cmp.Or(os.Getenv("PHOTOZIP_COMPRESSOR"), string(c.Compressor)))
	c.Sleep = cmp.Or(os.Getenv("PHOTOZIP_SLEEP"), c.Sleep)
}

func (c *Config) setDefaults() {
	c.PhotosPath = cmp.Or(c.PhotosPath, DefaultPhotosPath)
	c.Port = cmp.Or(c.Port, DefaultPort)
	c.ZipBinary = cmp.Or(c.ZipBinary, DefaultZipBinary)
	c.Compressor = cmp.Or(c.Compressor, CompressorExec)

	if c.Debug {
		c.LogLevel = "debug"
	}
	c.LogLevel = cmp.Or(c.LogLevel, "info")

	// Logs live next to the config file, or under the working directory.
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
		if c.Path != "" {
			c.LogDir = filepath.Join(filepath.Dir(c.Path), DefaultLogDir)
		}
	}

	if c.URLBase == "" {
		c.URLBase = "/"
	}
	if !strings.HasPrefix(c.URLBase, "/") {
		c.URLBase = "/" + c.URLBase
	}
	if !strings.HasSuffix(c.URLBase, "/") {
		c.URLBase += "/"
	}

	// An invalid or non-positive throttle means no pausing between chunks.
	c.throttle = 0
	if d, err := ParseDuration(c.Sleep); err == nil && d > 0 {
		c.throttle = d
	}

	c.reapTimeout = DefaultReapTimeout
	if d, err := ParseDuration(c.ReapTimeout); err == nil && d > 0 {
		c.reapTimeout = d
	}
}

func (c *Config) Validate() error {
	switch c.Compressor {
	case CompressorExec, CompressorNative:
	default:
		return fmt.Errorf("unknown compressor %q", c.Compressor)
	}
	if c.MaxConcurrent < 0 {
		return errors.New("max_concurrent must not be negative")
	}
	if c.SpawnRate != "" {
		if _, err := ParseRateLimit(c.SpawnRate); err != nil {
			return err
		}
	}
	if c.StatsInterval != "" {
		if _, err := utils.ConvertToJobDef(c.StatsInterval); err != nil {
			return fmt.Errorf("stats_interval: %w", err)
		}
	}
	return nil
}

// Throttle is the pause inserted after every chunk, zero when disabled.
func (c *Config) Throttle() time.Duration {
	return c.throttle
}

// GetReapTimeout is how long a finished compressor may take to exit before it is killed.
func (c *Config) GetReapTimeout() time.Duration {
	if c.reapTimeout <= 0 {
		return DefaultReapTimeout
	}
	return c.reapTimeout
}

func (c *Config) BaseDir() (string, error) {
	return filepath.Abs(c.PhotosPath)
}

// ParseDuration accepts Go durations ("1.5s") and plain seconds ("1.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func FormatSeconds(secs float64) string {
	return strconv.FormatFloat(secs, 'f', -1, 64)
}

// ParseRateLimit parses "5/second", "100/minute" or "1000/hour" into a count and period.
func ParseRateLimit(s string) (Rate, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Rate{}, fmt.Errorf("invalid rate limit %q", s)
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || count <= 0 {
		return Rate{}, fmt.Errorf("invalid rate limit count %q", parts[0])
	}
	var per time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "s", "sec", "second":
		per = time.Second
	case "m", "min", "minute":
		per = time.Minute
	case "h", "hr", "hour":
		per = time.Hour
	default:
		return Rate{}, fmt.Errorf("invalid rate limit unit %q", parts[1])
	}
	return Rate{Count: count, Per: per}, nil
}

type Rate struct {
	Count int
	Per   time.Duration
}
