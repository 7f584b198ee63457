// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is built once at
// startup from validated external inputs and passed by reference into every
// component that needs it; nothing reads live environment lookups after that.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Portal   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PortalConfig identifies the target portal and the account used against it.
// Account and Password are mandatory for browsing commands; neither is ever
// logged.
type PortalConfig struct {
	LoginURL  string `mapstructure:"login_url" yaml:"login_url"`
	PortalURL string `mapstructure:"portal_url" yaml:"portal_url"`
	Account   string `mapstructure:"account" yaml:"-"`
	Password  string `mapstructure:"password" yaml:"-"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Locale            string        `mapstructure:"locale" yaml:"locale"`
	Timezone          string        `mapstructure:"timezone" yaml:"timezone"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleWait        time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	LocateTimeout     time.Duration `mapstructure:"locate_timeout" yaml:"locate_timeout"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// MailboxConfig describes the IMAP mailbox the verification codes arrive in.
// Address and Password are optional; without them the OTP step cannot run,
// which is only fatal if the portal actually asks for a code.
type MailboxConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Address      string        `mapstructure:"address" yaml:"-"`
	Password     string        `mapstructure:"password" yaml:"-"`
	Senders      []string      `mapstructure:"senders" yaml:"senders"`
	CodeLength   int           `mapstructure:"code_length" yaml:"code_length"`
	MaxScan      int           `mapstructure:"max_scan" yaml:"max_scan"`
	WaitBudget   time.Duration `mapstructure:"wait_budget" yaml:"wait_budget"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// Configured reports whether mailbox access credentials are present.
func (m MailboxConfig) Configured() bool {
	return m.Address != "" && m.Password != ""
}

// TelegramConfig holds the bot used for success notifications.
// Both fields empty means notifications are silently skipped.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"-"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}

// Configured reports whether the notification bot is usable.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// RunConfig tunes the attempt controller.
type RunConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	DelayMin      time.Duration `mapstructure:"delay_min" yaml:"delay_min"`
	DelayMax      time.Duration `mapstructure:"delay_max" yaml:"delay_max"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autopunch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Portal --
	v.SetDefault("portal.login_url", "https://bsignin.104.com.tw/login")
	v.SetDefault("portal.portal_url", "https://pro.104.com.tw/psc2")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "zh-TW")
	v.SetDefault("browser.timezone", "Asia/Taipei")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.settle_wait", "3s")
	v.SetDefault("browser.locate_timeout", "3s")
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.screenshot_dir", "screenshots")

	// -- Mailbox --
	v.SetDefault("mailbox.host", "imap.gmail.com")
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.senders", []string{
		"104.com.tw",
		"pro.104.com.tw",
		"noreply@104.com.tw",
		"service@104.com.tw",
	})
	v.SetDefault("mailbox.code_length", 6)
	v.SetDefault("mailbox.max_scan", 20)
	v.SetDefault("mailbox.wait_budget", "60s")
	v.SetDefault("mailbox.poll_interval", "5s")

	// -- Run --
	v.SetDefault("run.max_attempts", 3)
	v.SetDefault("run.retry_interval", "30s")
	v.SetDefault("run.delay_min", "0s")
	v.SetDefault("run.delay_max", "300s")
}

// NewFromViper creates a configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data explicitly; AutomaticEnv
	// alone does not surface keys absent from the config file to Unmarshal.
	_ = v.BindEnv("portal.account", "AUTOPUNCH_PORTAL_ACCOUNT")
	_ = v.BindEnv("portal.password", "AUTOPUNCH_PORTAL_PASSWORD")
	_ = v.BindEnv("mailbox.address", "AUTOPUNCH_MAILBOX_ADDRESS")
	_ = v.BindEnv("mailbox.password", "AUTOPUNCH_MAILBOX_PASSWORD")
	_ = v.BindEnv("telegram.bot_token", "AUTOPUNCH_TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "AUTOPUNCH_TELEGRAM_CHAT_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Credential presence is
// checked separately by ValidateCredentials so that commands which do not
// browse (mail-test) can run without portal credentials.
func (c *Config) Validate() error {
	if c.Run.MaxAttempts <= 0 {
		return fmt.Errorf("run.max_attempts must be a positive integer")
	}
	if c.Run.DelayMin < 0 || c.Run.DelayMax < c.Run.DelayMin {
		return fmt.Errorf("run.delay_min/delay_max must satisfy 0 <= min <= max")
	}
	if c.Mailbox.CodeLength < 4 || c.Mailbox.CodeLength > 8 {
		return fmt.Errorf("mailbox.code_length must be between 4 and 8")
	}
	if c.Mailbox.MaxScan <= 0 {
		return fmt.Errorf("mailbox.max_scan must be a positive integer")
	}
	if c.Mailbox.PollInterval <= 0 {
		return fmt.Errorf("mailbox.poll_interval must be a positive duration")
	}
	if !strings.HasPrefix(c.Portal.LoginURL, "http") {
		return fmt.Errorf("portal.login_url must be an absolute URL")
	}
	if !strings.HasPrefix(c.Portal.PortalURL, "http") {
		return fmt.Errorf("portal.portal_url must be an absolute URL")
	}
	return nil
}

// ValidateCredentials checks the mandatory portal account settings.
// Called by commands that are about to open a browsing session.
func (c *Config) ValidateCredentials() error {
	if c.Portal.Account == "" || c.Portal.Password == "" {
		return fmt.Errorf("portal account and password are required; set AUTOPUNCH_PORTAL_ACCOUNT and AUTOPUNCH_PORTAL_PASSWORD")
	}
	return nil
}

// ValidateMailbox checks the mailbox access settings needed for the OTP step.
func (c *Config) ValidateMailbox() error {
	if !c.Mailbox.Configured() {
		return fmt.Errorf("mailbox address and password are required; set AUTOPUNCH_MAILBOX_ADDRESS and AUTOPUNCH_MAILBOX_PASSWORD")
	}
	return nil
}
