// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// Configuration defaults.
const (
	DefaultWebPort       = 8080
	DefaultWebUsername   = "admin"
	DefaultWebPassword   = "talkrec"
	DefaultEmailSMTPPort = 587
	DefaultEmailFromName = "ZuidWest FM Talkback"
	DefaultLogLevel      = "info"
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
)

// WebConfig contains web server configuration.
type WebConfig struct {
	Port     int    `json:"port" validate:"min=1,max=65535"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// AudioConfig contains audio input configuration.
type AudioConfig struct {
	Input string `json:"input"`
}

// StorageConfig contains recording storage configuration.
type StorageConfig struct {
	// Root is the storage root; recordings go to its "myai" subdirectory.
	Root string `json:"root" validate:"required"`
	// RetentionDays removes recordings older than this. Zero keeps them forever.
	RetentionDays int `json:"retention_days,omitempty" validate:"min=0,max=3650"`
}

// EmailConfig contains email notification configuration.
type EmailConfig struct {
	Host       string `json:"host,omitempty" validate:"omitempty,hostname_rfc1123|ip"`
	Port       int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	FromName   string `json:"from_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Recipients string `json:"recipients,omitempty"`
}

// NotificationsConfig contains all notification configuration.
type NotificationsConfig struct {
	WebhookURL string      `json:"webhook_url,omitempty" validate:"omitempty,url"`
	LogPath    string      `json:"log_path,omitempty"`
	Email      EmailConfig `json:"email,omitempty"`
}

// LogConfig contains application log configuration.
type LogConfig struct {
	File       string `json:"file,omitempty"`
	Level      string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" validate:"min=0"`
	MaxBackups int    `json:"max_backups,omitempty" validate:"min=0"`
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	Web           WebConfig           `json:"web"`
	Audio         AudioConfig         `json:"audio"`
	Storage       StorageConfig       `json:"storage"`
	Notifications NotificationsConfig `json:"notifications,omitempty"`
	Log           LogConfig           `json:"log,omitempty"`

	mu       sync.RWMutex
	filePath string
}

var validate = validator.New()

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		Web: WebConfig{
			Port:     DefaultWebPort,
			Username: DefaultWebUsername,
			Password: DefaultWebPassword,
		},
		Storage: StorageConfig{
			Root: defaultStorageRoot(),
		},
		filePath: filePath,
	}
}

// defaultStorageRoot returns the user's home directory, or the working
// directory when it cannot be determined.
func defaultStorageRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return util.WrapError("validate config", err)
	}
	return nil
}

// applyDefaults fills fields a hand-edited file may leave out.
func (c *Config) applyDefaults() {
	c.Web.Port = cmp.Or(c.Web.Port, DefaultWebPort)
	c.Web.Username = cmp.Or(c.Web.Username, DefaultWebUsername)
	c.Web.Password = cmp.Or(c.Web.Password, DefaultWebPassword)
	if c.Storage.Root == "" {
		c.Storage.Root = defaultStorageRoot()
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// update applies change, validates the result and saves it. An invalid or
// unsaved change is rolled back so memory and disk never disagree.
func (c *Config) update(change func(*Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.settings()
	change(c)
	if err := validate.Struct(c); err != nil {
		c.restore(prev)
		return util.WrapError("validate config", err)
	}
	if err := c.saveLocked(); err != nil {
		c.restore(prev)
		return err
	}
	return nil
}

// settingsCopy holds the persisted sections of a Config without its lock.
type settingsCopy struct {
	web           WebConfig
	audio         AudioConfig
	storage       StorageConfig
	notifications NotificationsConfig
	log           LogConfig
}

func (c *Config) settings() settingsCopy {
	return settingsCopy{c.Web, c.Audio, c.Storage, c.Notifications, c.Log}
}

func (c *Config) restore(s settingsCopy) {
	c.Web, c.Audio, c.Storage, c.Notifications, c.Log = s.web, s.audio, s.storage, s.notifications, s.log
}

// WebPort returns the web server port.
func (c *Config) WebPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Web.Port
}

// AudioInput returns the device the next recording captures from.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// RetentionDays returns how many days recordings are kept. Zero keeps them forever.
func (c *Config) RetentionDays() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Storage.RetentionDays
}

// WebhookURL returns the configured webhook URL for notifications.
func (c *Config) WebhookURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notifications.WebhookURL
}

// LogPath returns the configured recording log file path.
func (c *Config) LogPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notifications.LogPath
}

// SetAudioInput switches the capture device for later recordings.
func (c *Config) SetAudioInput(input string) error {
	return c.update(func(cfg *Config) { cfg.Audio.Input = input })
}

// SetRetentionDays changes how long recordings are kept.
func (c *Config) SetRetentionDays(days int) error {
	return c.update(func(cfg *Config) { cfg.Storage.RetentionDays = days })
}

// SetWebhookURL changes the webhook that receives recording events.
func (c *Config) SetWebhookURL(url string) error {
	return c.update(func(cfg *Config) { cfg.Notifications.WebhookURL = url })
}

// SetLogPath changes the recording log file path.
func (c *Config) SetLogPath(path string) error {
	return c.update(func(cfg *Config) { cfg.Notifications.LogPath = path })
}

// SetEmailConfig replaces the email notification settings.
func (c *Config) SetEmailConfig(host string, port int, fromName, username, password, recipients string) error {
	return c.update(func(cfg *Config) {
		cfg.Notifications.Email = EmailConfig{
			Host:       host,
			Port:       port,
			FromName:   fromName,
			Username:   username,
			Password:   password,
			Recipients: recipients,
		}
	})
}

// Snapshot contains a point-in-time copy of all configuration values.
// Use this instead of multiple individual getters to reduce mutex contention.
type Snapshot struct {
	// Web
	WebPort     int
	WebUser     string
	WebPassword string

	// Audio
	AudioInput string

	// Storage
	StorageRoot   string
	RetentionDays int

	// Notifications
	WebhookURL string
	LogPath    string

	// Email
	EmailSMTPHost   string
	EmailSMTPPort   int
	EmailFromName   string
	EmailUsername   string
	EmailPassword   string
	EmailRecipients string

	// Application log
	LogFile       string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WebPort:     c.Web.Port,
		WebUser:     c.Web.Username,
		WebPassword: c.Web.Password,

		AudioInput: c.Audio.Input,

		StorageRoot:   c.Storage.Root,
		RetentionDays: c.Storage.RetentionDays,

		WebhookURL: c.Notifications.WebhookURL,
		LogPath:    c.Notifications.LogPath,

		// Email (with defaults)
		EmailSMTPHost:   c.Notifications.Email.Host,
		EmailSMTPPort:   cmp.Or(c.Notifications.Email.Port, DefaultEmailSMTPPort),
		EmailFromName:   cmp.Or(c.Notifications.Email.FromName, DefaultEmailFromName),
		EmailUsername:   c.Notifications.Email.Username,
		EmailPassword:   c.Notifications.Email.Password,
		EmailRecipients: c.Notifications.Email.Recipients,

		// Log (with defaults)
		LogFile:       c.Log.File,
		LogLevel:      cmp.Or(c.Log.Level, DefaultLogLevel),
		LogMaxSizeMB:  cmp.Or(c.Log.MaxSizeMB, DefaultLogMaxSizeMB),
		LogMaxBackups: cmp.Or(c.Log.MaxBackups, DefaultLogMaxBackups),
	}
}

// HasEmail returns true if email notifications are configured.
func (s *Snapshot) HasEmail() bool {
	return s.EmailSMTPHost != "" && s.EmailRecipients != ""
}

// HasWebhook returns true if a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasLogPath returns true if a recording log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}
