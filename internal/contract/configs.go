package contract

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/apigrade/schema"
)

// Default values for configuration.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8080
	DefaultTimeout        = 10 * time.Second
	DefaultStartupTimeout = 60 * time.Second
	DefaultPrecision      = 2
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultInstallCmd     = "npm install"
	DefaultStartCmd       = "node server.js"
	MaxPrecision          = 4
)

// DefaultRequiredFiles are the entry points a checkout must contain.
var DefaultRequiredFiles = []string{"package.json", "server.js"}

// DefaultWorkers is the default number of targets graded at the same time.
// Every worker claims its own port, so the default stays at one.
var DefaultWorkers = 1

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// validLogLevels lists the accepted --log-level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// validLogFormats lists the accepted --log-format values.
var validLogFormats = []string{"console", "json"}

// Target identifies one service to grade.
type Target struct {
	Name      string
	ProjectID string
	Repo      string // git URL or local directory; empty when attached
	Local     bool   // Repo is a local directory that is used in place
}

// TargetRaw is a target entry from the YAML config file.
type TargetRaw struct {
	Name      string `mapstructure:"name"`
	ProjectID string `mapstructure:"project_id"`
	Repo      string `mapstructure:"repo"`
}

// Config holds the runtime configuration for grading.
// This struct remains the "final, validated" config.
type Config struct {
	SpecPath       string // empty means the embedded file-storage document
	Host           string
	Port           int
	Timeout        time.Duration
	StartupTimeout time.Duration
	Workers        int
	Precision      int
	Output         schema.OutputMode
	OutputFile     string
	Width          int // Terminal width override (0 = auto-detect)
	UseColors      bool

	RunsBackend   schema.DatabaseBackend
	RunsDBConnect string // Please use env var as this is plaintext

	LogLevel  string
	LogFormat string

	WorkDir       string
	InstallCmd    string
	StartCmd      string
	RequiredFiles []string

	FailUnder float64
	Attach    bool
	Targets   []Target
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	TargetArgs []string

	// --- Fields from rootCmd.PersistentFlags() ---
	Spec          string `mapstructure:"spec"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Timeout       string `mapstructure:"timeout"`
	Workers       int    `mapstructure:"workers"`
	Precision     int    `mapstructure:"precision"`
	Output        string `mapstructure:"output"`
	OutputFile    string `mapstructure:"output-file"`
	Width         int    `mapstructure:"width"`
	Color         string `mapstructure:"color"`
	RunsBackend   string `mapstructure:"runs-backend"`
	RunsDBConnect string `mapstructure:"runs-db-connect"`
	LogLevel      string `mapstructure:"log-level"`
	LogFormat     string `mapstructure:"log-format"`

	// --- Fields from gradeCmd.Flags() ---
	StartupTimeout string  `mapstructure:"startup-timeout"`
	WorkDir        string  `mapstructure:"workdir"`
	InstallCmd     string  `mapstructure:"install-cmd"`
	StartCmd       string  `mapstructure:"start-cmd"`
	RequiredFiles  string  `mapstructure:"required-files"`
	FailUnder      float64 `mapstructure:"fail-under"`
	Attach         bool    `mapstructure:"attach"`
	Name           string  `mapstructure:"name"`
	ProjectID      string  `mapstructure:"project-id"`

	// --- Targets from config file ---
	Targets []TargetRaw `mapstructure:"targets"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.RequiredFiles = slices.Clone(c.RequiredFiles)
	clone.Targets = slices.Clone(c.Targets)
	return &clone
}

// CloneWithPort creates a copy of the Config bound to another port.
func (c *Config) CloneWithPort(port int) *Config {
	clone := c.Clone()
	clone.Port = port
	return clone
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := processLifecycleInputs(cfg, input); err != nil {
		return err
	}
	if err := resolveTargets(ctx, cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("runs-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("runs-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all fields that need no further lookup.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.SpecPath = input.Spec
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Attach = input.Attach

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Host and port ---
	cfg.Host = strings.TrimSpace(input.Host)
	if cfg.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers
	if input.Port <= 0 || input.Port+cfg.Workers-1 > math.MaxUint16 {
		return fmt.Errorf("port must be between 1 and %d for %d worker(s) (received %d)",
			math.MaxUint16-cfg.Workers+1, cfg.Workers, input.Port)
	}
	cfg.Port = input.Port

	// --- 2. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 1 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, yaml", input.Output)
	}

	// --- 3. Logging ---
	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level '%s'. must be %s", input.LogLevel, strings.Join(validLogLevels, ", "))
	}
	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if !slices.Contains(validLogFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format '%s'. must be %s", input.LogFormat, strings.Join(validLogFormats, ", "))
	}

	// --- 4. Gate ---
	if input.FailUnder < 0 || input.FailUnder > 1 || math.IsNaN(input.FailUnder) {
		return fmt.Errorf("fail-under must be between 0 and 1 (received %v)", input.FailUnder)
	}
	cfg.FailUnder = input.FailUnder

	// --- 5. Backend Validation ---
	cfg.RunsBackend = schema.DatabaseBackend(strings.ToLower(input.RunsBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.RunsBackend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", input.RunsBackend)
	}
	cfg.RunsDBConnect = input.RunsDBConnect
	return ValidateDatabaseConnectionString(cfg.RunsBackend, cfg.RunsDBConnect)
}

// processDurations parses the duration strings.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	timeout, err := parsePositiveDuration("timeout", input.Timeout)
	if err != nil {
		return err
	}
	cfg.Timeout = timeout

	startup, err := parsePositiveDuration("startup-timeout", input.StartupTimeout)
	if err != nil {
		return err
	}
	cfg.StartupTimeout = startup
	return nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive (received %s)", key, value)
	}
	return d, nil
}

// processLifecycleInputs validates how local services are prepared and started.
func processLifecycleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.InstallCmd = strings.TrimSpace(input.InstallCmd)
	cfg.StartCmd = strings.TrimSpace(input.StartCmd)
	if !cfg.Attach && cfg.StartCmd == "" {
		return fmt.Errorf("start-cmd must not be empty unless --attach is set")
	}

	cfg.RequiredFiles = nil
	for part := range strings.SplitSeq(input.RequiredFiles, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cfg.RequiredFiles = append(cfg.RequiredFiles, filepath.Clean(trimmed))
		}
	}

	workDir := input.WorkDir
	if workDir == "" {
		workDir = GetWorkDirPath()
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workdir %q: %w", workDir, err)
	}
	cfg.WorkDir = abs
	return nil
}

// resolveTargets merges positional arguments with config file targets.
// Positional arguments win when both are present.
func resolveTargets(ctx context.Context, cfg *Config, input *ConfigRawInput) error {
	raw := make([]TargetRaw, 0, len(input.TargetArgs))
	for _, arg := range input.TargetArgs {
		raw = append(raw, TargetRaw{Repo: arg})
	}
	if len(raw) == 0 {
		raw = input.Targets
	}

	if cfg.Attach {
		if len(raw) > 1 {
			return fmt.Errorf("--attach grades exactly one running service (received %d targets)", len(raw))
		}
		name := firstNonEmpty(input.Name, "attached")
		cfg.Targets = []Target{{
			Name:      name,
			ProjectID: firstNonEmpty(input.ProjectID, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		}}
		return nil
	}

	cfg.Targets = nil
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := resolveTarget(r)
		if err != nil {
			return err
		}
		if _, dup := seen[target.Name]; dup {
			return fmt.Errorf("duplicate target name %q", target.Name)
		}
		seen[target.Name] = struct{}{}
		cfg.Targets = append(cfg.Targets, target)
	}

	// Name overrides only make sense for a single target
	if len(cfg.Targets) == 1 {
		cfg.Targets[0].Name = firstNonEmpty(input.Name, cfg.Targets[0].Name)
		cfg.Targets[0].ProjectID = firstNonEmpty(input.ProjectID, cfg.Targets[0].ProjectID)
	}
	return nil
}

func resolveTarget(r TargetRaw) (Target, error) {
	repo := strings.TrimSpace(r.Repo)
	if repo == "" {
		return Target{}, fmt.Errorf("target %q has no repo", r.Name)
	}

	t := Target{Repo: repo}
	if info, err := os.Stat(repo); err == nil && info.IsDir() {
		abs, err := filepath.Abs(repo)
		if err != nil {
			return Target{}, fmt.Errorf("failed to resolve target path %q: %w", repo, err)
		}
		t.Repo = abs
		t.Local = true
	} else if !looksLikeRemote(repo) {
		return Target{}, fmt.Errorf("target %q is neither a local directory nor a git URL", repo)
	}

	derived := deriveTargetName(t.Repo)
	t.Name = firstNonEmpty(r.Name, derived)
	t.ProjectID = firstNonEmpty(r.ProjectID, t.Name)
	return t, nil
}

// looksLikeRemote accepts URLs with a scheme and scp-like git addresses.
func looksLikeRemote(repo string) bool {
	if u, err := url.Parse(repo); err == nil && u.Scheme != "" && u.Host != "" {
		return true
	}
	return strings.Contains(repo, "@") && strings.Contains(repo, ":")
}

func deriveTargetName(repo string) string {
	repo = strings.TrimRight(repo, "/")
	if i := strings.LastIndexAny(repo, "/:"); i >= 0 {
		repo = repo[i+1:]
	}
	return strings.TrimSuffix(repo, ".git")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
