// Package config loads the filing host configuration from an optional YAML
// file, a .env file and EFILING_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EFILING_EFM_EMAIL.
const EnvPrefix = "EFILING"

// Config is the full host configuration.
type Config struct {
	QueueDir             string   `yaml:"queueDir" mapstructure:"queueDir"`
	SuccessDir           string   `yaml:"successDir" mapstructure:"successDir"`
	FailedDir            string   `yaml:"failedDir" mapstructure:"failedDir"`
	SubmitReviewDir      string   `yaml:"submitReviewDir" mapstructure:"submitReviewDir"`
	NotifyReviewDir      string   `yaml:"notifyReviewDir" mapstructure:"notifyReviewDir"`
	CourtID              string   `yaml:"courtID" mapstructure:"courtID"`
	CourtLocations       []string `yaml:"courtLocations" mapstructure:"courtLocations"`
	NotifyCallbackURL    string   `yaml:"notifyCallbackURL" mapstructure:"notifyCallbackURL"`
	AttachDetachSelfTest bool     `yaml:"attachDetachSelfTest" mapstructure:"attachDetachSelfTest"`

	Schedule    ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
	Retention   RetentionConfig   `yaml:"retention" mapstructure:"retention"`
	EFM         EFMConfig         `yaml:"efm" mapstructure:"efm"`
	Gateway     GatewayConfig     `yaml:"gateway" mapstructure:"gateway"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	GCP         GCPConfig         `yaml:"gcp" mapstructure:"gcp"`
	Attachments AttachmentsConfig `yaml:"attachments" mapstructure:"attachments"`
}

// ScheduleConfig drives the poller. HourToCheckCodes < 0 disables the daily
// code table refresh.
type ScheduleConfig struct {
	PollingIntervalMinutes int `yaml:"pollingIntervalMinutes" mapstructure:"pollingIntervalMinutes"`
	HourToCheckCodes       int `yaml:"hourToCheckCodes" mapstructure:"hourToCheckCodes"`
	MinutesFrom            int `yaml:"minutesFrom" mapstructure:"minutesFrom"`
	MinutesTo              int `yaml:"minutesTo" mapstructure:"minutesTo"`
}

// PollingInterval returns the poll period.
func (s ScheduleConfig) PollingInterval() time.Duration {
	return time.Duration(s.PollingIntervalMinutes) * time.Minute
}

// RetentionConfig holds purge ages in days; 0 keeps files forever.
type RetentionConfig struct {
	MessageDays int `yaml:"messageDays" mapstructure:"messageDays"`
	LogDays     int `yaml:"logDays" mapstructure:"logDays"`
}

type EFMConfig struct {
	UserServiceURL   string `yaml:"userServiceURL" mapstructure:"userServiceURL"`
	FirmServiceURL   string `yaml:"firmServiceURL" mapstructure:"firmServiceURL"`
	RecordServiceURL string `yaml:"recordServiceURL" mapstructure:"recordServiceURL"`
	FilingServiceURL string `yaml:"filingServiceURL" mapstructure:"filingServiceURL"`
	Email            string `yaml:"email" mapstructure:"email"`
	Password         string `yaml:"password" mapstructure:"password"`
	PFXPath          string `yaml:"pfxPath" mapstructure:"pfxPath"`
	PFXPassword      string `yaml:"pfxPassword" mapstructure:"pfxPassword"`
	TimeoutSeconds   int    `yaml:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	MaxRetries       int    `yaml:"maxRetries" mapstructure:"maxRetries"`
}

func (e EFMConfig) Timeout() time.Duration { return time.Duration(e.TimeoutSeconds) * time.Second }

type GatewayConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	HealthURL      string `yaml:"healthURL" mapstructure:"healthURL"`
	Login          string `yaml:"login" mapstructure:"login"`
	Password       string `yaml:"password" mapstructure:"password"`
	CheckHealth    bool   `yaml:"checkHealth" mapstructure:"checkHealth"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

func (g GatewayConfig) Timeout() time.Duration { return time.Duration(g.TimeoutSeconds) * time.Second }

type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig selects the log level and an optional log file under Dir.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	Dir   string `yaml:"dir" mapstructure:"dir"`
	File  string `yaml:"file" mapstructure:"file"`
}

// GCPConfig enables the optional cloud mirrors. Each feature is off while its
// fields are empty.
type GCPConfig struct {
	ProjectID        string `yaml:"projectID" mapstructure:"projectID"`
	ArchiveBucket    string `yaml:"archiveBucket" mapstructure:"archiveBucket"`
	LedgerCollection string `yaml:"ledgerCollection" mapstructure:"ledgerCollection"`
	WorkflowLocation string `yaml:"workflowLocation" mapstructure:"workflowLocation"`
	WorkflowID       string `yaml:"workflowID" mapstructure:"workflowID"`
}

type AttachmentsConfig struct {
	RejectInvalid bool `yaml:"rejectInvalid" mapstructure:"rejectInvalid"`
}

var defaults = map[string]any{
	"queueDir":                        "",
	"successDir":                      "",
	"failedDir":                       "",
	"submitReviewDir":                 "",
	"notifyReviewDir":                 "",
	"courtID":                         "",
	"courtLocations":                  []string{},
	"notifyCallbackURL":               "",
	"attachDetachSelfTest":            false,
	"schedule.pollingIntervalMinutes": 15,
	"schedule.hourToCheckCodes":       -1,
	"schedule.minutesFrom":            0,
	"schedule.minutesTo":              59,
	"retention.messageDays":           0,
	"retention.logDays":               0,
	"efm.userServiceURL":              "",
	"efm.firmServiceURL":              "",
	"efm.recordServiceURL":            "",
	"efm.filingServiceURL":            "",
	"efm.email":                       "",
	"efm.password":                    "",
	"efm.pfxPath":                     "",
	"efm.pfxPassword":                 "",
	"efm.timeoutSeconds":              100,
	"efm.maxRetries":                  3,
	"gateway.url":                     "",
	"gateway.healthURL":               "",
	"gateway.login":                   "",
	"gateway.password":                "",
	"gateway.checkHealth":             false,
	"gateway.timeoutSeconds":          30,
	"http.addr":                       ":8080",
	"log.level":                       "info",
	"log.dir":                         "",
	"log.file":                        "",
	"gcp.projectID":                   "",
	"gcp.archiveBucket":               "",
	"gcp.ledgerCollection":            "",
	"gcp.workflowLocation":            "us-central1",
	"gcp.workflowID":                  "",
	"attachments.rejectInvalid":       false,
}

// Load reads .env (if present) into the environment, then builds the
// configuration from defaults, the YAML file at path (optional when empty)
// and EFILING_* variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.CourtLocations = splitList(cfg.CourtLocations)
	return cfg, nil
}

// splitList accepts both YAML lists and the ;-separated form used in env vars.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks everything the filing host needs to run a poll cycle.
func (c *Config) Validate() error {
	var problems []string
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" must be set")
		}
	}
	require(c.QueueDir, "queueDir")
	require(c.SuccessDir, "successDir")
	require(c.FailedDir, "failedDir")
	require(c.CourtID, "courtID")
	require(c.EFM.UserServiceURL, "efm.userServiceURL")
	require(c.EFM.FirmServiceURL, "efm.firmServiceURL")
	require(c.EFM.RecordServiceURL, "efm.recordServiceURL")
	require(c.EFM.FilingServiceURL, "efm.filingServiceURL")
	require(c.EFM.Email, "efm.email")
	if err := c.ValidateGateway(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Schedule.PollingIntervalMinutes <= 0 {
		problems = append(problems, "schedule.pollingIntervalMinutes must be positive")
	}
	if c.Schedule.HourToCheckCodes > 23 {
		problems = append(problems, "schedule.hourToCheckCodes must be between -1 and 23")
	}
	if c.Schedule.MinutesFrom < 0 || c.Schedule.MinutesTo > 59 || c.Schedule.MinutesFrom > c.Schedule.MinutesTo {
		problems = append(problems, "schedule.minutesFrom..minutesTo must be a range within 0..59")
	}
	if c.Retention.MessageDays < 0 || c.Retention.LogDays < 0 {
		problems = append(problems, "retention days must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateGateway checks the settings needed to publish responses.
func (c *Config) ValidateGateway() error {
	if strings.TrimSpace(c.Gateway.URL) == "" {
		return fmt.Errorf("gateway.url must be set")
	}
	if c.Gateway.CheckHealth && strings.TrimSpace(c.Gateway.HealthURL) == "" {
		return fmt.Errorf("gateway.healthURL must be set when gateway.checkHealth is on")
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.EFM.Password = mask(c.EFM.Password)
	c.EFM.PFXPassword = mask(c.EFM.PFXPassword)
	c.Gateway.Password = mask(c.Gateway.Password)
	c.CourtLocations = append([]string(nil), c.CourtLocations...)
	return c
}
