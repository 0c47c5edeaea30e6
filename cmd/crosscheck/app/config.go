package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds CLI-level configuration from flags, environment
// variables, and .env files. Run-level configuration (sources, rules)
// lives in the YAML run configuration instead.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool

	// Overrides for the run configuration
	Workers   int
	OutputDir string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration in order of precedence: flags (bound
// later by cobra), environment variables, .env files, defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	bindAPIKeys()

	return &Config{
		Verbose:   viper.GetBool("verbose"),
		Quiet:     viper.GetBool("quiet"),
		Workers:   viper.GetInt("crosscheck_workers"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}, nil
}

// APIKey resolves the model-assistance API key from the named
// environment variable.
func (c *Config) APIKey(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindAPIKeys explicitly binds the model API key variables to Viper so
// values from .env files are visible.
func bindAPIKeys() {
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		_ = viper.BindEnv(key)
	}
}

// getEnvOrDefault returns the environment variable value or the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
