package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/reconciler"
)

// EnvPrefix prefixes every environment variable keysync reads through viper.
const EnvPrefix = "KEYSYNC"

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Store and extraction locations
	Database string
	InputDir string

	// Reconcile is the reconciliation configuration every run starts from.
	Reconcile reconciler.Config

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags and the commands)
//  2. KEYSYNC_* environment variables
//  3. .env and .env.local files
//  4. Config file (the given path, or keysync.yaml in . or $HOME)
//  5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapIO("read", configFile, err)
		}
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("keysync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.WrapParse("yaml", v.ConfigFileUsed(), err)
			}
		}
	}

	// Unmarshal walks every leaf key, so KEYSYNC_RECONCILE_* overrides
	// reach the nested settings.
	var settings struct {
		Reconcile reconciler.Config `mapstructure:"reconcile"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return nil, errors.WrapParse("config", "reconcile", err)
	}

	return &Config{
		Verbose:    v.GetBool("verbose"),
		Quiet:      v.GetBool("quiet"),
		NoColor:    v.GetBool("no_color"),
		Format:     v.GetString("format"),
		ConfigFile: v.ConfigFileUsed(),
		Database:   v.GetString("database"),
		InputDir:   v.GetString("input_dir"),
		Reconcile:  settings.Reconcile,

		// LOG_* are shared with every tool built on pkg/logging, so they
		// are read unprefixed.
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}, nil
}

// setDefaults registers every key so environment variables can override
// nested reconcile settings during unmarshalling.
func setDefaults(v *viper.Viper) {
	d := reconciler.DefaultConfig()
	v.SetDefault("database", constants.DatabasePath)
	v.SetDefault("input_dir", constants.InputDir)
	v.SetDefault("format", "")
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("no_color", false)

	v.SetDefault("reconcile.mode", string(d.Mode))
	v.SetDefault("reconcile.strategy", string(d.Strategy))
	v.SetDefault("reconcile.separator", d.Separator)
	v.SetDefault("reconcile.prefix", d.Prefix)
	v.SetDefault("reconcile.auto_approve", d.AutoApprove)
	v.SetDefault("reconcile.dry_run", d.DryRun)
	v.SetDefault("reconcile.checkpoint_interval", d.CheckpointInterval)
	v.SetDefault("reconcile.concurrency", d.Concurrency)
	v.SetDefault("reconcile.extract_timeout", d.ExtractTimeout)

	v.SetDefault("reconcile.rules.uppercase", d.Rules.Uppercase)
	v.SetDefault("reconcile.rules.strip_non_alphanumeric", d.Rules.StripNonAlphanumeric)
	v.SetDefault("reconcile.rules.collapse_delimiters", d.Rules.CollapseDelimiters)
	v.SetDefault("reconcile.rules.left_pad_numeric", d.Rules.LeftPadNumeric)
	v.SetDefault("reconcile.rules.pad_length", d.Rules.PadLength)
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, database string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if database != "" {
		c.Database = database
	}
}

// loadEnvFiles loads environment variables from .env files. godotenv never
// overrides a variable that is already set, so loading .env.local first
// lets it win over .env while the real environment wins over both.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
