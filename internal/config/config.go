package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AlfaDocsBaseURL    string `mapstructure:"ALFADOCS_BASE_URL"`
	AlfaDocsAPIKey     string `mapstructure:"ALFADOCS_API_KEY"`
	AlfaDocsPracticeID string `mapstructure:"ALFADOCS_PRACTICE_ID"`
	AlfaDocsArchiveID  string `mapstructure:"ALFADOCS_ARCHIVE_ID"`

	GHLBaseURL    string `mapstructure:"GHL_BASE_URL"`
	GHLAuthURL    string `mapstructure:"GHL_AUTH_URL"`
	GHLLocationID string `mapstructure:"GHL_LOCATION_ID"`

	CalendarsFile string `mapstructure:"CALENDARS_FILE"`
	OperatorsFile string `mapstructure:"OPERATORS_FILE"`

	BlockedOperatorID int64         `mapstructure:"BLOCKED_OPERATOR_ID"`
	SyncSchedule      string        `mapstructure:"SYNC_SCHEDULE"`
	StaleFlagAge      time.Duration `mapstructure:"SYNC_STALE_FLAG_AGE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ALFADOCS_BASE_URL", "https://api.alfadocs.com")
	v.SetDefault("GHL_BASE_URL", "https://services.leadconnectorhq.com")
	v.SetDefault("CALENDARS_FILE", "calendars.json")
	v.SetDefault("OPERATORS_FILE", "operators.json")
	v.SetDefault("BLOCKED_OPERATOR_ID", 308357)
	v.SetDefault("SYNC_SCHEDULE", "*/30 * * * *")
	v.SetDefault("SYNC_STALE_FLAG_AGE", "72h")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("ALFADOCS_BASE_URL")
	v.BindEnv("ALFADOCS_API_KEY")
	v.BindEnv("ALFADOCS_PRACTICE_ID")
	v.BindEnv("ALFADOCS_ARCHIVE_ID")
	v.BindEnv("GHL_BASE_URL")
	v.BindEnv("GHL_AUTH_URL")
	v.BindEnv("GHL_LOCATION_ID")
	v.BindEnv("CALENDARS_FILE")
	v.BindEnv("OPERATORS_FILE")
	v.BindEnv("BLOCKED_OPERATOR_ID")
	v.BindEnv("SYNC_SCHEDULE")
	v.BindEnv("SYNC_STALE_FLAG_AGE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that everything a sync run needs is configured. The
// credentials have no workable defaults, so startup refuses to proceed
// instead of failing mid-run.
func (c *Config) Validate() error {
	required := []struct{ key, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"ALFADOCS_API_KEY", c.AlfaDocsAPIKey},
		{"ALFADOCS_PRACTICE_ID", c.AlfaDocsPracticeID},
		{"ALFADOCS_ARCHIVE_ID", c.AlfaDocsArchiveID},
		{"GHL_AUTH_URL", c.GHLAuthURL},
		{"GHL_LOCATION_ID", c.GHLLocationID},
		{"CALENDARS_FILE", c.CalendarsFile},
		{"OPERATORS_FILE", c.OperatorsFile},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	if c.StaleFlagAge <= 0 {
		return fmt.Errorf("SYNC_STALE_FLAG_AGE must be a positive duration, got %s", c.StaleFlagAge)
	}
	return nil
}
