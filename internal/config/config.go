// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey    string        `yaml:"openai_key"`
	GeminiKey    string        `yaml:"gemini_key"`
	GeminiURL    string        `yaml:"gemini_url"`
	TextModel    string        `yaml:"text_model"`
	SpeechModel  string        `yaml:"speech_model"`
	DefaultVoice string        `yaml:"default_voice"`
	CallTimeout  time.Duration `yaml:"call_timeout"` // generation can run minutes
}

type PushConfig struct {
	FCM struct {
		ProjectID   string `yaml:"project_id"`
		AccessToken string `yaml:"access_token"`
		Endpoint    string `yaml:"endpoint"` // override for tests
	} `yaml:"fcm"`
	APNs struct {
		TeamID     string `yaml:"team_id"`
		KeyID      string `yaml:"key_id"`
		KeyPath    string `yaml:"key_path"` // .p8 signing key
		Topic      string `yaml:"topic"`
		Production bool   `yaml:"production"`
		Endpoint   string `yaml:"endpoint"`
	} `yaml:"apns"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AudienceConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

type BackoffConfig struct {
	Base        time.Duration `yaml:"base"`
	Cap         time.Duration `yaml:"cap"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type WorkersConfig struct {
	PoolSize      int           `yaml:"pool_size"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`    // processing older than this is reclaimed
	StaleInterval time.Duration `yaml:"stale_interval"` // sweep cadence
	MaxAttempts   int           `yaml:"max_attempts"`   // job re-insertion cap
}

type NotificationsConfig struct {
	RateLimitDisabled bool          `yaml:"rate_limit_disabled"`
	Cooldown          time.Duration `yaml:"cooldown"`      // per-type window
	CooldownMax       int           `yaml:"cooldown_max"`  // sends allowed per window
	DailyCap          int           `yaml:"daily_cap"`     // all types, via redis
	SendAttempts      int           `yaml:"send_attempts"` // in-call transport retries
	RetryInterval     time.Duration `yaml:"retry_interval"`
	RetryBackoff      BackoffConfig `yaml:"retry_backoff"`
}

type ReportsConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ClaimLease      time.Duration `yaml:"claim_lease"`
	BatchSize       int           `yaml:"batch_size"`
	ReminderWeekday time.Weekday  `yaml:"reminder_weekday"` // 1=Monday … 6=Saturday
	ReminderHour    int           `yaml:"reminder_hour"`    // local evening hour
	RetryBackoff    BackoffConfig `yaml:"retry_backoff"`
	PromptBudget    int           `yaml:"prompt_budget"` // tokens of journal text per summary
}

type ProgressConfig struct {
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	ActiveWindow     time.Duration `yaml:"active_window"` // users active within this are recomputed
	DefaultTimezone  string        `yaml:"default_timezone"`
	UnlockJournal    int           `yaml:"unlock_journal"`
	ReportJournal    int           `yaml:"report_journal"`
	ReportMeditation int           `yaml:"report_meditation"`
}

type TagSyncConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	BatchSize     int           `yaml:"batch_size"`
}

type APIConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	AI            AIConfig            `yaml:"ai"`
	Push          PushConfig          `yaml:"push"`
	Email         EmailConfig         `yaml:"email"`
	Audience      AudienceConfig      `yaml:"audience"`
	Storage       StorageConfig       `yaml:"storage"`
	Workers       WorkersConfig       `yaml:"workers"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Reports       ReportsConfig       `yaml:"reports"`
	Progress      ProgressConfig      `yaml:"progress"`
	TagSync       TagSyncConfig       `yaml:"tag_sync"`
	API           APIConfig           `yaml:"api"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == "" && !dev {
		return nil, errors.New("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.AI.TextModel == "" {
		cfg.AI.TextModel = "gpt-4o-mini"
	}
	if cfg.AI.SpeechModel == "" {
		cfg.AI.SpeechModel = "tts-1"
	}
	if cfg.AI.DefaultVoice == "" {
		cfg.AI.DefaultVoice = "alloy"
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 3 * time.Minute
	}
	if cfg.Workers.PoolSize <= 0 {
		cfg.Workers.PoolSize = 4
	}
	if cfg.Workers.PollInterval <= 0 {
		cfg.Workers.PollInterval = 500 * time.Millisecond
	}
	if cfg.Workers.StaleAfter <= 0 {
		cfg.Workers.StaleAfter = 10 * time.Minute
	}
	if cfg.Workers.StaleInterval <= 0 {
		cfg.Workers.StaleInterval = time.Minute
	}
	if cfg.Workers.MaxAttempts <= 0 {
		cfg.Workers.MaxAttempts = 3
	}
	if cfg.Notifications.Cooldown <= 0 {
		cfg.Notifications.Cooldown = 6 * time.Hour
	}
	if cfg.Notifications.CooldownMax <= 0 {
		cfg.Notifications.CooldownMax = 1
	}
	if cfg.Notifications.DailyCap <= 0 {
		cfg.Notifications.DailyCap = 5
	}
	if cfg.Notifications.SendAttempts <= 0 {
		cfg.Notifications.SendAttempts = 3
	}
	if cfg.Notifications.RetryInterval <= 0 {
		cfg.Notifications.RetryInterval = time.Minute
	}
	cfg.Notifications.RetryBackoff.normalize(time.Minute, time.Hour, 5)
	if cfg.Reports.SweepInterval <= 0 {
		cfg.Reports.SweepInterval = 5 * time.Minute
	}
	if cfg.Reports.ClaimLease <= 0 {
		cfg.Reports.ClaimLease = 15 * time.Minute
	}
	if cfg.Reports.BatchSize <= 0 {
		cfg.Reports.BatchSize = 50
	}
	if cfg.Reports.ReminderWeekday <= 0 || cfg.Reports.ReminderWeekday > 6 {
		cfg.Reports.ReminderWeekday = time.Thursday
	}
	if cfg.Reports.ReminderHour <= 0 {
		cfg.Reports.ReminderHour = 19
	}
	if cfg.Reports.PromptBudget <= 0 {
		cfg.Reports.PromptBudget = 3000
	}
	cfg.Reports.RetryBackoff.normalize(30*time.Minute, 24*time.Hour, 8)
	if cfg.Progress.SweepInterval <= 0 {
		cfg.Progress.SweepInterval = 15 * time.Minute
	}
	if cfg.Progress.ActiveWindow <= 0 {
		cfg.Progress.ActiveWindow = 14 * 24 * time.Hour
	}
	if cfg.Progress.DefaultTimezone == "" {
		cfg.Progress.DefaultTimezone = "UTC"
	}
	if cfg.Progress.UnlockJournal <= 0 {
		cfg.Progress.UnlockJournal = 3
	}
	if cfg.Progress.ReportJournal <= 0 {
		cfg.Progress.ReportJournal = 5
	}
	if cfg.Progress.ReportMeditation <= 0 {
		cfg.Progress.ReportMeditation = 3
	}
	if cfg.TagSync.SweepInterval <= 0 {
		cfg.TagSync.SweepInterval = 30 * time.Minute
	}
	if cfg.TagSync.StaleAfter <= 0 {
		cfg.TagSync.StaleAfter = 12 * time.Hour
	}
	if cfg.TagSync.BatchSize <= 0 {
		cfg.TagSync.BatchSize = 100
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
}

func (b *BackoffConfig) normalize(base, cap time.Duration, attempts int) {
	if b.Base <= 0 {
		b.Base = base
	}
	if b.Cap <= 0 {
		b.Cap = cap
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = attempts
	}
}
