package folio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseCurrency is the reporting currency used when none is configured.
const DefaultBaseCurrency = "TWD"

// Config holds the tool's settings. It is read from a YAML file, with
// credentials overridable through the environment (a .env file is honored) so
// secrets stay out of the config file.
type Config struct {
	Store        StoreConfig    `yaml:"store"`
	BaseCurrency string         `yaml:"base_currency"`
	Provider     ProviderConfig `yaml:"provider"`
	Sinopac      SinopacConfig  `yaml:"sinopac"`
	Fubon        FubonConfig    `yaml:"fubon"`
}

// StoreConfig selects and locates the database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

// ProviderConfig tunes the market data service.
type ProviderConfig struct {
	Endpoint        string `yaml:"endpoint"`          // quote API base URL, empty for the default
	PriceTTLMinutes int    `yaml:"price_ttl_minutes"` // quote cache lifetime
	RateTTLMinutes  int    `yaml:"rate_ttl_minutes"`  // exchange rate cache lifetime
}

// PriceTTL returns the quote cache lifetime.
func (p ProviderConfig) PriceTTL() time.Duration {
	return time.Duration(p.PriceTTLMinutes) * time.Minute
}

// RateTTL returns the exchange rate cache lifetime.
func (p ProviderConfig) RateTTL() time.Duration {
	return time.Duration(p.RateTTLMinutes) * time.Minute
}

// SinopacConfig holds SinoPac Securities API access.
type SinopacConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
	CAPath     string `yaml:"ca_path"`
	CAPassword string `yaml:"ca_password"`
	PersonID   string `yaml:"person_id"`
}

// FubonConfig holds Fubon Securities API access.
type FubonConfig struct {
	Endpoint    string `yaml:"endpoint"`
	UserID      string `yaml:"user_id"`
	Password    string `yaml:"password"`
	PFXPath     string `yaml:"pfx_path"`
	PFXPassword string `yaml:"pfx_password"`
}

// DefaultDir returns the directory holding the config file and the default
// database, under the user's configuration directory.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "folio")
}

// DefaultConfigPath returns the default location of the config file.
func DefaultConfigPath() string { return filepath.Join(DefaultDir(), "config.yaml") }

// DefaultStorePath returns the default location of the sqlite database.
func DefaultStorePath() string { return filepath.Join(DefaultDir(), "folio.db") }

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig reads the configuration from path, or from the default location
// when path is empty. A missing file yields the defaults. Environment
// variables (including a .env file in the working directory) override
// credentials and store settings.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	c := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file, run on defaults.
	case err != nil:
		return nil, fmt.Errorf("cannot read config %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("cannot parse config %q: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnv()

	if !ValidCurrency(c.BaseCurrency) {
		return nil, fmt.Errorf("%w: base currency %q is not supported", ErrValidation, c.BaseCurrency)
	}
	return c, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = DefaultStorePath()
	}
	if c.BaseCurrency == "" {
		c.BaseCurrency = DefaultBaseCurrency
	}
	if c.Provider.PriceTTLMinutes <= 0 {
		c.Provider.PriceTTLMinutes = 15
	}
	if c.Provider.RateTTLMinutes <= 0 {
		c.Provider.RateTTLMinutes = 60
	}
}

func (c *Config) applyEnv() {
	// Loads a .env file if present. Existing variables win.
	godotenv.Load()

	envOverride(&c.Store.Driver, "FOLIO_STORE_DRIVER")
	envOverride(&c.Store.DSN, "FOLIO_STORE_DSN")
	envOverride(&c.BaseCurrency, "FOLIO_BASE_CURRENCY")
	envOverride(&c.Provider.Endpoint, "FOLIO_PROVIDER_ENDPOINT")

	envOverride(&c.Sinopac.Endpoint, "SINOPAC_ENDPOINT")
	envOverride(&c.Sinopac.APIKey, "SINOPAC_API_KEY")
	envOverride(&c.Sinopac.SecretKey, "SINOPAC_SECRET_KEY")
	envOverride(&c.Sinopac.CAPath, "SINOPAC_CA_PATH")
	envOverride(&c.Sinopac.CAPassword, "SINOPAC_CA_PASSWORD")
	envOverride(&c.Sinopac.PersonID, "SINOPAC_PERSON_ID")

	envOverride(&c.Fubon.Endpoint, "FUBON_ENDPOINT")
	envOverride(&c.Fubon.UserID, "FUBON_USER_ID")
	envOverride(&c.Fubon.Password, "FUBON_PASSWORD")
	envOverride(&c.Fubon.PFXPath, "FUBON_PFX_PATH")
	envOverride(&c.Fubon.PFXPassword, "FUBON_PFX_PASSWORD")
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
