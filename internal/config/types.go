package config

// Config is the whole config file. YAML and JSON are both accepted; unknown
// keys are rejected so typos surface at startup instead of silently doing
// nothing.
type Config struct {
	// Sites lists the accounts to watch. At least one is required.
	Sites []SiteConfig `json:"sites"`

	API     APIConfig     `json:"api,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty"`
	Notify  NotifyConfig  `json:"notify,omitempty"`
	Storage StorageConfig `json:"storage,omitempty"`
	Stats   StatsConfig   `json:"stats,omitempty"`
	Watch   WatchConfig   `json:"watch,omitempty"`
}

// SiteConfig is one account: site name, user identity, secret token.
type SiteConfig struct {
	Name  string `json:"name"`
	User  string `json:"user"`
	Token string `json:"token"`
}

// APIConfig tunes the HTTP boundary shared by all sites.
type APIConfig struct {
	// Host is the apex domain; the per-site base URL becomes
	// https://{site}.{host}/api/v1/.
	Host      string `json:"host,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	// RequestTimeout is a Go duration string. Leave empty/zero to keep
	// requests unbounded, which long polling needs.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// NotifyConfig controls the notification pipeline for important messages.
type NotifyConfig struct {
	// Desktop enables the desktop popup sink. Defaults to true when the
	// whole notify section is omitted.
	Desktop    *bool `json:"desktop,omitempty"`
	QueueSize  int   `json:"queue_size,omitempty"`
	RatePerSec int   `json:"rate_per_sec,omitempty"`

	Telegram TelegramNotify `json:"telegram,omitempty"`
}

// TelegramNotify forwards important messages to a Telegram chat, for
// headless deployments where desktop popups go nowhere.
type TelegramNotify struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// StorageConfig controls the optional message history.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./chatwatch.db", "retention": "168h" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
	Retention   string `json:"retention,omitempty"`    // Go duration string; empty keeps forever
}

// StatsConfig controls the periodic per-site summary log line.
type StatsConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	// Schedule is a cron spec (5-field, or 6-field with seconds).
	// Defaults to hourly.
	Schedule string `json:"schedule,omitempty"`
}

// WatchConfig tunes watcher lifecycle.
type WatchConfig struct {
	// Restart re-runs a watcher with backoff after a fatal error instead of
	// letting that site stay dead for the rest of the process.
	Restart     bool `json:"restart,omitempty"`
	MaxRestarts int  `json:"max_restarts,omitempty"` // <=0 means unlimited
}
