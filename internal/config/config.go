package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvListen    = "TEACHCAL_LISTEN"
	EnvSourceURL = "TEACHCAL_SOURCE_URL"
	EnvTestDate  = "TEACHCAL_TEST_DATE"
)

// SourceConfig describes where the weekly schedule comes from. StaticPath,
// when set, wins over URL.
type SourceConfig struct {
	URL         string `yaml:"url" json:"url" validate:"required_without=StaticPath,omitempty,url"`
	ProfessorID string `yaml:"professor_id" json:"professor_id"`
	StaticPath  string `yaml:"static_path,omitempty" json:"static_path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA timezone of the school's wall clock.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required,timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * *")
	// used to reload the schedule. Empty disables periodic reloads.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Source SourceConfig `yaml:"source" json:"source"`

	// CacheDir keeps the last fetched payload for conditional requests.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Slots are the grid row start times, ascending ("07:30", "08:20", ...).
	Slots []string `yaml:"slots" json:"slots" validate:"min=1,dive,required"`

	// GridDays are the day indexes (0=Sunday) shown as grid columns.
	GridDays []int `yaml:"grid_days" json:"grid_days" validate:"min=1,dive,min=0,max=6"`

	// TestDate pins the time source (RFC3339). Empty means the wall clock.
	TestDate string `yaml:"test_date,omitempty" json:"test_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultSlots are the class periods used by the grid view.
var DefaultSlots = []string{"07:30", "08:20", "09:10", "10:00", "10:20", "11:10", "12:00", "13:00", "13:50", "14:40", "15:30"}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "America/Sao_Paulo",
		RefreshCron: "0 6 * * *",
		Source: SourceConfig{
			URL:         "https://etec-flow.fwh.is/professor/grade_semana.php",
			ProfessorID: "1",
		},
		CacheDir:    "/var/lib/teachcal/cache",
		Slots:       append([]string(nil), DefaultSlots...),
		GridDays:    []int{1, 2, 3, 4, 5},
		CORSOrigins: []string{"*"},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Sao_Paulo"
	}
	if len(c.Slots) == 0 {
		c.Slots = append([]string(nil), DefaultSlots...)
	}
	if len(c.GridDays) == 0 {
		c.GridDays = []int{1, 2, 3, 4, 5}
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
}

// ApplyEnv loads ./.env (if present) and lets environment variables
// override file values.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvSourceURL); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv(EnvTestDate); v != "" {
		c.TestDate = v
	}
}

var validate = validator.New()

// Validate checks the effective values; call it after ApplyEnv.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// PinnedNow parses TestDate. A zero time means no pin.
func (c *Config) PinnedNow() (time.Time, error) {
	if c.TestDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.TestDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("test_date: %w", err)
	}
	return t, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// via a temp file + rename, with final permissions 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".teachcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
