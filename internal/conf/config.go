// Package conf loads and exposes the application settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for a log file output.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// DatabaseSettings selects and configures the relational store backend.
type DatabaseSettings struct {
	SQLite struct {
		Enabled bool   // true to use SQLite
		Path    string // path to the database file
	}
	MySQL struct {
		Enabled  bool
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}
}

// SourceSettings configures how scraped sources participate in fusion.
type SourceSettings struct {
	// Priorities maps a source code to its fusion priority. Lower wins.
	// The synthetic manual source is always priority 1; codes missing from
	// this table fall back to priority 10.
	Priorities map[string]int
}

// MatchingSettings holds per-kind confidence thresholds and the event
// time-compatibility windows.
type MatchingSettings struct {
	EventThreshold     float64 // minimum confidence to accept an event match
	VenueThreshold     float64
	ArtistThreshold    float64
	OrganizerThreshold float64
	NearDuplicateTitle float64 // title similarity floor for the near-duplicate fallback
	TimeBonusMinutes   int     // start times within this window earn the time bonus
	TimeMaxMinutes     int     // start times beyond this window are time-incompatible
}

// ClientSettings configures one rate-limited external HTTP client.
type ClientSettings struct {
	Enabled         bool
	BaseURL         string
	MinIntervalMS   int // minimum milliseconds between requests
	CacheTTLMinutes int
	TimeoutSeconds  int
}

// EnrichmentSettings configures the optional artist enrichment lookups.
type EnrichmentSettings struct {
	Music        ClientSettings // music metadata lookups
	Encyclopedia ClientSettings // encyclopedia summary lookups
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of the instance, used in log messages
		Log  LogConfig // main log settings
	}

	Database   DatabaseSettings
	Sources    SourceSettings
	Matching   MatchingSettings
	Geocoding  ClientSettings
	Enrichment EnrichmentSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// initViper sets up viper with defaults and the config file search paths.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file found, defaults apply.
	}

	return nil
}

// Setting returns the current settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, _ = Load()
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetSettings is an alias for Setting kept for call-site readability.
func GetSettings() *Settings {
	return Setting()
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "scenefuse"),
		"/etc/scenefuse",
	}, nil
}

// SaveAs writes the current settings to the given path as YAML.
func (s *Settings) SaveAs(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks the settings for inconsistencies that would break a run.
func (s *Settings) Validate() error {
	if !s.Database.SQLite.Enabled && !s.Database.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled")
	}
	if s.Database.SQLite.Enabled && s.Database.MySQL.Enabled {
		return fmt.Errorf("both SQLite and MySQL enabled, pick one")
	}
	if s.Matching.EventThreshold <= 0 || s.Matching.EventThreshold > 1 {
		return fmt.Errorf("matching.eventthreshold must be in (0,1], got %v", s.Matching.EventThreshold)
	}
	for code, prio := range s.Sources.Priorities {
		if prio < 2 {
			return fmt.Errorf("source %q priority %d conflicts with the manual source (priority 1)", code, prio)
		}
	}
	return nil
}
