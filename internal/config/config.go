// Package config loads the balancer configuration from .env, an optional YAML or TOML
// file named by BALANCER_CONFIG, and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"revenue-balance/internal/core"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvSandbox    = "SANDBOX"
	EnvProduction = "PRODUCTION"
)

// DeploymentIDs names the script deployment record of each environment.
type DeploymentIDs struct {
	Sandbox    string `yaml:"sandbox" toml:"sandbox"`
	Production string `yaml:"production" toml:"production"`
}

// SMTP holds the mail relay used for failure notifications.
type SMTP struct {
	Host      string `yaml:"host" toml:"host"`
	Port      int    `yaml:"port" toml:"port"`
	Username  string `yaml:"username" toml:"username"`
	Password  string `yaml:"password" toml:"password"`
	FromEmail string `yaml:"from_email" toml:"from_email"`
	FromName  string `yaml:"from_name" toml:"from_name"`
}

// Config is the full balancer configuration.
type Config struct {
	DatabaseURL           string        `yaml:"database_url" toml:"database_url"`
	UnbalancedOrdersQuery string        `yaml:"unbalanced_orders_query" toml:"unbalanced_orders_query"`
	BalanceAnalysisQuery  string        `yaml:"balance_analysis_query" toml:"balance_analysis_query"`
	Environment           string        `yaml:"environment" toml:"environment"`
	DeploymentIDs         DeploymentIDs `yaml:"deployment_ids" toml:"deployment_ids"`
	JobName               string        `yaml:"job_name" toml:"job_name"`

	Timezone         string  `yaml:"timezone" toml:"timezone"`
	Schedule         string  `yaml:"schedule" toml:"schedule"`
	Workers          int     `yaml:"workers" toml:"workers"`
	OrdersPerSecond  float64 `yaml:"orders_per_second" toml:"orders_per_second"`
	MaxLinesPerOrder int     `yaml:"max_lines_per_order" toml:"max_lines_per_order"`
	StageDir         string  `yaml:"stage_dir" toml:"stage_dir"`
	KeepStageFiles   bool    `yaml:"keep_stage_files" toml:"keep_stage_files"`
	ReportDir        string  `yaml:"report_dir" toml:"report_dir"`

	HTTPAddr       string `yaml:"http_addr" toml:"http_addr"`
	JWTSecret      string `yaml:"jwt_secret" toml:"jwt_secret"`
	AllowedOrigins string `yaml:"allowed_origins" toml:"allowed_origins"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
	LogFile   string `yaml:"log_file" toml:"log_file"`

	SMTP       SMTP     `yaml:"smtp" toml:"smtp"`
	NotifyTo   []string `yaml:"notify_to" toml:"notify_to"`
	WebhookURL string   `yaml:"webhook_url" toml:"webhook_url"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		UnbalancedOrdersQuery: "v_orders_needing_balance",
		BalanceAnalysisQuery:  "v_order_balance_lines",
		Environment:           EnvSandbox,
		DeploymentIDs:         DeploymentIDs{Sandbox: "8326", Production: "8669"},
		JobName:               "revenue_balance",
		Timezone:              "America/New_York",
		Schedule:              "0 2 * * *",
		Workers:               4,
		MaxLinesPerOrder:      200,
		HTTPAddr:              ":8080",
		LogLevel:              "info",
		LogFormat:             "json",
		SMTP:                  SMTP{Port: 587},
	}
}

// Load reads .env (if present), the optional config file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("BALANCER_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays a YAML (.yaml, .yml) or TOML (.toml) file onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.UnbalancedOrdersQuery, "UNBALANCED_ORDERS_QUERY")
	setString(&c.BalanceAnalysisQuery, "BALANCE_ANALYSIS_QUERY")
	setString(&c.Environment, "ENV_TYPE")
	setString(&c.DeploymentIDs.Sandbox, "DEPLOYMENT_ID_SANDBOX")
	setString(&c.DeploymentIDs.Production, "DEPLOYMENT_ID_PRODUCTION")
	setString(&c.JobName, "JOB_NAME")
	setString(&c.Timezone, "REPORTING_TIMEZONE")
	setString(&c.Schedule, "SCHEDULE")
	setString(&c.StageDir, "STAGE_DIR")
	setString(&c.ReportDir, "REPORT_DIR")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogFile, "LOG_FILE")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.FromEmail, "SMTP_FROM_EMAIL")
	setString(&c.SMTP.FromName, "SMTP_FROM_NAME")
	setString(&c.WebhookURL, "NOTIFY_WEBHOOK_URL")
	if v := os.Getenv("NOTIFY_TO"); v != "" {
		c.NotifyTo = splitCSV(v)
	}

	return errors.Join(
		setInt(&c.Workers, "WORKERS"),
		setInt(&c.MaxLinesPerOrder, "MAX_LINES_PER_ORDER"),
		setInt(&c.SMTP.Port, "SMTP_PORT"),
		setFloat(&c.OrdersPerSecond, "ORDERS_PER_SECOND"),
		setBool(&c.KeepStageFiles, "KEEP_STAGE_FILES"),
	)
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	c.Environment = strings.ToUpper(strings.TrimSpace(c.Environment))
	if c.Environment != EnvSandbox && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("config: ENV_TYPE must be %s or %s, got %q", EnvSandbox, EnvProduction, c.Environment))
	}
	if c.DeploymentID() == "" {
		errs = append(errs, fmt.Errorf("config: no deployment id for %s", c.Environment))
	}
	if c.UnbalancedOrdersQuery == "" || c.BalanceAnalysisQuery == "" {
		errs = append(errs, errors.New("config: UNBALANCED_ORDERS_QUERY and BALANCE_ANALYSIS_QUERY are required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: WORKERS must be at least 1, got %d", c.Workers))
	}
	if c.MaxLinesPerOrder < 1 {
		errs = append(errs, fmt.Errorf("config: MAX_LINES_PER_ORDER must be at least 1, got %d", c.MaxLinesPerOrder))
	}
	if c.OrdersPerSecond < 0 {
		errs = append(errs, fmt.Errorf("config: ORDERS_PER_SECOND must not be negative"))
	}
	if _, err := core.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("config: REPORTING_TIMEZONE: %w", err))
	}
	if c.SMTP.Host != "" && len(c.NotifyTo) == 0 {
		errs = append(errs, errors.New("config: NOTIFY_TO is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}

// DeploymentID returns the deployment record id for the configured environment.
func (c *Config) DeploymentID() string {
	if strings.EqualFold(c.Environment, EnvProduction) {
		return c.DeploymentIDs.Production
	}
	return c.DeploymentIDs.Sandbox
}

// Location returns the reporting timezone. An empty Timezone means America/New_York.
func (c *Config) Location() (*time.Location, error) {
	return core.LoadLocation(c.Timezone)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
