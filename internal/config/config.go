package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/theyoungmaker/schedule-bot/internal/payroll"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Venue is one teaching location and the calendar holding its lessons.
type Venue struct {
	Key        string `json:"key" yaml:"key"`                                     // Short key used in commands (e.g., "SOK")
	Name       string `json:"name" yaml:"name"`                                   // Display name for message headers
	CalendarID string `json:"calendar_id,omitempty" yaml:"calendar_id,omitempty"` // Google Calendar ID
	ICSURL     string `json:"ics_url,omitempty" yaml:"ics_url,omitempty"`         // Read-only iCalendar file or URL
}

// Source returns the calendar ID, or the ICS location for ICS venues.
func (v Venue) Source() string {
	if v.ICSURL != "" {
		return v.ICSURL
	}
	return v.CalendarID
}

// IsICS reports whether the venue is read from an iCalendar feed.
func (v Venue) IsICS() bool {
	return v.ICSURL != ""
}

// Rates configures hourly pay.
type Rates struct {
	Default        float64  `json:"default,omitempty" yaml:"default,omitempty"`
	Premium        float64  `json:"premium,omitempty" yaml:"premium,omitempty"`
	Shadow         float64  `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	ShadowHours    float64  `json:"shadow_hours,omitempty" yaml:"shadow_hours,omitempty"`
	PremiumHandles []string `json:"premium_handles,omitempty" yaml:"premium_handles,omitempty"`
}

// Table builds the payroll rate table.
func (r Rates) Table() *payroll.RateTable {
	return payroll.NewRateTable(
		decimal.NewFromFloat(r.Default),
		decimal.NewFromFloat(r.Premium),
		decimal.NewFromFloat(r.Shadow),
		decimal.NewFromFloat(r.ShadowHours),
		r.PremiumHandles,
	)
}

// MinIO configures upload of generated reports to object storage.
type MinIO struct {
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	AccessKey     string `json:"access_key" yaml:"access_key"`
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	Bucket        string `json:"bucket" yaml:"bucket"`
	Region        string `json:"region,omitempty" yaml:"region,omitempty"`
	Prefix        string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	UseSSL        bool   `json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
	URLTTLMinutes int    `json:"url_ttl_minutes,omitempty" yaml:"url_ttl_minutes,omitempty"`
}

// URLTTL is the lifetime of presigned download links.
func (m MinIO) URLTTL() time.Duration {
	return time.Duration(m.URLTTLMinutes) * time.Minute
}

// Config holds the configuration for the schedule bot.
type Config struct {
	BotToken              string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	GroupChatID           int64  `json:"group_chat_id,omitempty" yaml:"group_chat_id,omitempty"` // Chat receiving pushed schedules
	AdminChatID           int64  `json:"admin_chat_id,omitempty" yaml:"admin_chat_id,omitempty"` // Chat notified of sent message IDs
	TokenPath             string `json:"token_path,omitempty" yaml:"token_path,omitempty"`
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty" yaml:"google_credentials_path,omitempty"`
	Timezone              string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	DefaultVenue string  `json:"default_venue,omitempty" yaml:"default_venue,omitempty"`
	Venues       []Venue `json:"venues,omitempty" yaml:"venues,omitempty"`

	Rates    Rates  `json:"rates,omitempty" yaml:"rates,omitempty"`
	Reminder string `json:"reminder,omitempty" yaml:"reminder,omitempty"` // Posted after each pushed schedule; defaults to the built-in text

	MessageLogPath string `json:"message_log_path,omitempty" yaml:"message_log_path,omitempty"`
	ReportDir      string `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
	MinIO          *MinIO `json:"minio,omitempty" yaml:"minio,omitempty"`

	ScheduleCron string `json:"schedule_cron,omitempty" yaml:"schedule_cron,omitempty"` // Standard 5-field cron spec for automatic /send
	WebhookURL   string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`     // Public URL; empty means long polling
	ListenAddr   string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	PollTimeout  int    `json:"poll_timeout,omitempty" yaml:"poll_timeout,omitempty"` // Long polling timeout in seconds

	location *time.Location
}

// Overrides are values given on the command line. Zero values are ignored.
type Overrides struct {
	BotToken              string
	GroupChatID           int64
	AdminChatID           int64
	TokenPath             string
	GoogleCredentialsPath string
	Timezone              string
	DefaultVenue          string
	ScheduleCron          string
	WebhookURL            string
	ListenAddr            string
}

// Location returns the configured timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Venue looks up a venue by key, ignoring case.
func (c *Config) Venue(key string) (Venue, bool) {
	for _, v := range c.Venues {
		if strings.EqualFold(v.Key, key) {
			return v, true
		}
	}
	return Venue{}, false
}

// defaultVenues mirrors the two branches the bot was first deployed for.
// Their calendar IDs come from SOK_CALENDAR_ID and LL_CALENDAR_ID.
var defaultVenues = []Venue{
	{Key: "SOK", Name: "Stars of Kovan Branch"},
	{Key: "LL", Name: "35 Lowland Branch"},
}

// LoadDotEnv loads variables from a .env file. Variables already present in
// the environment are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen by extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Overrides) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}
	if len(config.Venues) == 0 {
		config.Venues = append([]Venue(nil), defaultVenues...)
	}

	// Step 2: Override with environment variables
	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.BotToken != "" {
		config.BotToken = flags.BotToken
	}
	if flags.GroupChatID != 0 {
		config.GroupChatID = flags.GroupChatID
	}
	if flags.AdminChatID != 0 {
		config.AdminChatID = flags.AdminChatID
	}
	if flags.TokenPath != "" {
		config.TokenPath = flags.TokenPath
	}
	if flags.GoogleCredentialsPath != "" {
		config.GoogleCredentialsPath = flags.GoogleCredentialsPath
	}
	if flags.Timezone != "" {
		config.Timezone = flags.Timezone
	}
	if flags.DefaultVenue != "" {
		config.DefaultVenue = flags.DefaultVenue
	}
	if flags.ScheduleCron != "" {
		config.ScheduleCron = flags.ScheduleCron
	}
	if flags.WebhookURL != "" {
		config.WebhookURL = flags.WebhookURL
	}
	if flags.ListenAddr != "" {
		config.ListenAddr = flags.ListenAddr
	}

	// Step 4: Apply defaults and validate required fields
	applyDefaults(&config)
	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnv(config *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt64 := func(key string, dst *int64) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("BOT_TOKEN", &config.BotToken)
	setString("TOKEN_PATH", &config.TokenPath)
	setString("GOOGLE_CREDENTIALS_PATH", &config.GoogleCredentialsPath)
	setString("TIMEZONE", &config.Timezone)
	setString("DEFAULT_VENUE", &config.DefaultVenue)
	setString("REMINDER", &config.Reminder)
	setString("MESSAGE_LOG_PATH", &config.MessageLogPath)
	setString("REPORT_DIR", &config.ReportDir)
	setString("SCHEDULE_CRON", &config.ScheduleCron)
	setString("WEBHOOK_URL", &config.WebhookURL)
	setString("LISTEN_ADDR", &config.ListenAddr)

	if err := setInt64("GROUPCHAT_ID", &config.GroupChatID); err != nil {
		return err
	}
	if err := setInt64("ADMIN_CHAT_ID", &config.AdminChatID); err != nil {
		return err
	}

	// Per-venue calendar IDs, e.g. SOK_CALENDAR_ID
	for i := range config.Venues {
		v := &config.Venues[i]
		setString(strings.ToUpper(v.Key)+"_CALENDAR_ID", &v.CalendarID)
		setString(strings.ToUpper(v.Key)+"_ICS_URL", &v.ICSURL)
	}

	if handles := os.Getenv("PREMIUM_HANDLES"); handles != "" {
		config.Rates.PremiumHandles = nil
		for _, h := range strings.Split(handles, ",") {
			if h = strings.TrimSpace(h); h != "" {
				config.Rates.PremiumHandles = append(config.Rates.PremiumHandles, h)
			}
		}
	}

	// MinIO upload is enabled by setting MINIO_ENDPOINT
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		if config.MinIO == nil {
			config.MinIO = &MinIO{}
		}
		config.MinIO.Endpoint = endpoint
	}
	if config.MinIO != nil {
		setString("MINIO_ACCESS_KEY", &config.MinIO.AccessKey)
		setString("MINIO_SECRET_KEY", &config.MinIO.SecretKey)
		setString("MINIO_BUCKET", &config.MinIO.Bucket)
		setString("MINIO_REGION", &config.MinIO.Region)
		setString("MINIO_PREFIX", &config.MinIO.Prefix)
		if useSSL := os.Getenv("MINIO_USE_SSL"); useSSL != "" {
			b, err := strconv.ParseBool(useSSL)
			if err != nil {
				return fmt.Errorf("invalid MINIO_USE_SSL value: %w", err)
			}
			config.MinIO.UseSSL = b
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.TokenPath == "" {
		config.TokenPath = "token.json"
	}
	if config.GoogleCredentialsPath == "" {
		config.GoogleCredentialsPath = "credentials.json"
	}
	if config.Timezone == "" {
		config.Timezone = "Asia/Singapore"
	}
	if config.DefaultVenue == "" && len(config.Venues) > 0 {
		config.DefaultVenue = config.Venues[0].Key
	}
	if config.MessageLogPath == "" {
		config.MessageLogPath = "message_log.json"
	}
	if config.ReportDir == "" {
		config.ReportDir = "reports"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.PollTimeout == 0 {
		config.PollTimeout = 60
	}

	if config.Rates.Default == 0 {
		config.Rates.Default = payroll.DefaultHourlyRate.InexactFloat64()
	}
	if config.Rates.Premium == 0 {
		config.Rates.Premium = payroll.DefaultPremiumRate.InexactFloat64()
	}
	if config.Rates.Shadow == 0 {
		config.Rates.Shadow = payroll.DefaultShadowRate.InexactFloat64()
	}
	if config.Rates.ShadowHours == 0 {
		config.Rates.ShadowHours = payroll.DefaultShadowHours.InexactFloat64()
	}

	if config.MinIO != nil && config.MinIO.URLTTLMinutes == 0 {
		config.MinIO.URLTTLMinutes = 24 * 60
	}
}

func validate(config *Config) error {
	if config.BotToken == "" {
		return fmt.Errorf("bot_token must be provided via --bot-token flag, BOT_TOKEN environment variable, or config file")
	}
	if config.GroupChatID == 0 {
		return fmt.Errorf("group_chat_id must be provided via --group-chat-id flag, GROUPCHAT_ID environment variable, or config file")
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}
	config.location = loc

	seen := make(map[string]bool)
	for i, v := range config.Venues {
		if v.Key == "" {
			return fmt.Errorf("venues[%d]: key must be provided", i)
		}
		key := strings.ToUpper(v.Key)
		if seen[key] {
			return fmt.Errorf("venues[%d]: duplicate key %q", i, v.Key)
		}
		seen[key] = true
		if v.Name == "" {
			config.Venues[i].Name = v.Key
		}
		if v.Source() == "" {
			return fmt.Errorf("venues[%d] (key: %s): calendar_id or ics_url must be provided via config file or %s_CALENDAR_ID environment variable", i, v.Key, key)
		}
	}
	if _, ok := config.Venue(config.DefaultVenue); !ok {
		return fmt.Errorf("default_venue %q does not match any configured venue", config.DefaultVenue)
	}

	r := config.Rates
	if r.Default < 0 || r.Premium < 0 || r.Shadow < 0 || r.ShadowHours < 0 {
		return fmt.Errorf("rates must not be negative")
	}

	if config.ScheduleCron != "" {
		if _, err := cron.ParseStandard(config.ScheduleCron); err != nil {
			return fmt.Errorf("invalid schedule_cron %q: %w", config.ScheduleCron, err)
		}
	}

	if m := config.MinIO; m != nil {
		if m.Endpoint == "" || m.Bucket == "" {
			return fmt.Errorf("minio: endpoint and bucket must be provided")
		}
	}
	return nil
}
