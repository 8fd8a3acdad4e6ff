package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: On a missing config file Load writes the defaults to disk and
// continues with them, so a bare first run produces a working setup plus
// a file the user can edit. Saved configs are kept at 0600.

// DefaultSourceURL is the page announcing free electricity sessions.
const DefaultSourceURL = "https://octopus.energy/free-electricity/"

// ScraperConfig controls the page acquisition layer.
type ScraperConfig struct {
	// URL is the announcement page to poll.
	URL string `yaml:"url" json:"url"`

	// CheckIntervalMinutes is how often the scrape cycle runs.
	CheckIntervalMinutes int `yaml:"check_interval_minutes" json:"check_interval_minutes"`

	// TimeoutSeconds bounds a single page fetch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// RenderJS, when true, fetches the page through a headless browser so
	// that client-side-rendered announcements are visible to extraction.
	RenderJS bool `yaml:"render_js" json:"render_js"`
}

// AlarmConfig controls VALARM components attached to exported events.
type AlarmConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Times is the list of minute offsets before the event start at which
	// an alarm fires. 0 means "at start".
	Times []int `yaml:"times" json:"times"`
}

// CleanupConfig controls retention of already-ended sessions in the
// exported calendar.
type CleanupConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DaysToKeep is how long an ended session remains in the calendar.
	DaysToKeep int `yaml:"days_to_keep" json:"days_to_keep"`
}

// ICalConfig controls calendar file generation.
type ICalConfig struct {
	// OutputDir holds the generated calendar and the tracker state file.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Filename of the generated calendar inside OutputDir.
	Filename string `yaml:"filename" json:"filename"`

	// Timezone is the display name written into the calendar headers
	// (e.g. "GMT"). Sessions are resolved against UTCOffsetMinutes.
	Timezone string `yaml:"timezone" json:"timezone"`

	// UTCOffsetMinutes is the fixed offset applied when resolving
	// descriptor times. The publisher never states a zone, so a single
	// configured offset is used for every session.
	UTCOffsetMinutes int `yaml:"utc_offset_minutes" json:"utc_offset_minutes"`

	Alarms  AlarmConfig   `yaml:"alarms" json:"alarms"`
	Cleanup CleanupConfig `yaml:"cleanup" json:"cleanup"`
}

// NotificationsConfig controls milestone notifications.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// UpcomingHours is the lead time of the "upcoming" milestone.
	UpcomingHours int `yaml:"upcoming_hours" json:"upcoming_hours"`

	NotifyStart bool `yaml:"notify_start" json:"notify_start"`
	NotifyEnd   bool `yaml:"notify_end" json:"notify_end"`

	// CheckIntervalMinutes is how often the notify-check cycle runs.
	CheckIntervalMinutes int `yaml:"check_interval_minutes" json:"check_interval_minutes"`

	// DiscordWebhookURL, if set, delivers notifications to a Discord
	// channel webhook.
	DiscordWebhookURL string `yaml:"discord_webhook_url" json:"discord_webhook_url"`

	// WebhookURLs are generic JSON webhook endpoints receiving
	// {"title": ..., "body": ...} POSTs.
	WebhookURLs []string `yaml:"webhook_urls" json:"webhook_urls"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `yaml:"level" json:"level"`
}

// Config is the top-level application configuration.
type Config struct {
	Scraper       ScraperConfig       `yaml:"scraper" json:"scraper"`
	ICal          ICalConfig          `yaml:"ical" json:"ical"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			URL:                  DefaultSourceURL,
			CheckIntervalMinutes: 60,
			TimeoutSeconds:       30,
			RenderJS:             false,
		},
		ICal: ICalConfig{
			OutputDir:        "./output",
			Filename:         "octopus_free_electricity.ics",
			Timezone:         "GMT",
			UTCOffsetMinutes: 0,
			Alarms: AlarmConfig{
				Enabled: true,
				Times:   []int{60, 15, 0},
			},
			Cleanup: CleanupConfig{
				Enabled:    true,
				DaysToKeep: 7,
			},
		},
		Notifications: NotificationsConfig{
			Enabled:              false,
			UpcomingHours:        1,
			NotifyStart:          true,
			NotifyEnd:            true,
			CheckIntervalMinutes: 5,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Scraper.URL == "" {
		c.Scraper.URL = def.Scraper.URL
	}
	if c.Scraper.CheckIntervalMinutes <= 0 {
		c.Scraper.CheckIntervalMinutes = def.Scraper.CheckIntervalMinutes
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		c.Scraper.TimeoutSeconds = def.Scraper.TimeoutSeconds
	}

	if c.ICal.OutputDir == "" {
		c.ICal.OutputDir = def.ICal.OutputDir
	}
	if c.ICal.Filename == "" {
		c.ICal.Filename = def.ICal.Filename
	}
	if c.ICal.Timezone == "" {
		c.ICal.Timezone = def.ICal.Timezone
	}
	if c.ICal.Alarms.Times == nil {
		c.ICal.Alarms.Times = def.ICal.Alarms.Times
	}
	if c.ICal.Cleanup.DaysToKeep <= 0 {
		c.ICal.Cleanup.DaysToKeep = def.ICal.Cleanup.DaysToKeep
	}

	if c.Notifications.UpcomingHours <= 0 {
		c.Notifications.UpcomingHours = def.Notifications.UpcomingHours
	}
	if c.Notifications.CheckIntervalMinutes <= 0 {
		c.Notifications.CheckIntervalMinutes = def.Notifications.CheckIntervalMinutes
	}
	if c.Notifications.WebhookURLs == nil {
		c.Notifications.WebhookURLs = []string{}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Validate reports configuration errors that must abort startup. This is
// the only fatal failure class; everything downstream degrades instead.
func (c *Config) Validate() error {
	if c.Scraper.URL == "" {
		return errors.New("scraper.url is required")
	}
	if c.ICal.OutputDir == "" {
		return errors.New("ical.output_dir is required")
	}
	for _, m := range c.ICal.Alarms.Times {
		if m < 0 {
			return errors.New("ical.alarms.times entries must be >= 0")
		}
	}
	return nil
}

// Location returns the fixed session timezone as a *time.Location.
func (c *Config) Location() *time.Location {
	if c.ICal.UTCOffsetMinutes == 0 && (c.ICal.Timezone == "" || c.ICal.Timezone == "GMT" || c.ICal.Timezone == "UTC") {
		return time.UTC
	}
	name := c.ICal.Timezone
	if name == "" {
		name = "fixed"
	}
	return time.FixedZone(name, c.ICal.UTCOffsetMinutes*60)
}

// ICalPath returns the full path of the generated calendar file.
func (c *Config) ICalPath() string {
	return filepath.Join(c.ICal.OutputDir, c.ICal.Filename)
}

// StatePath returns the full path of the tracker state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.ICal.OutputDir, "state.json")
}

// Load reads the YAML configuration at path. A missing file is not an
// error: the defaults are written there and returned. An existing file is
// unmarshalled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: materialize the defaults on disk.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return the defaults alongside the error; the caller
				// chooses whether a read-only config dir is fatal.
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg as YAML to path, creating the parent directory if
// needed. The write goes through a temp file in the same directory and a
// rename, so a crash never leaves a half-written config behind. The final
// file ends up with 0600 permissions.
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

	// The temp file must live in dir so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".octofree-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// A no-op once the rename succeeds.
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

	// Chmod before the rename so the target is never world-readable.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
