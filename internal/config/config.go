package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	"github.com/m3rciful/guideshop/core/database"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// StorageConfig selects where the catalog and the view log live.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// SessionConfig controls conversation state.
type SessionConfig struct {
	// Driver defaults to the storage driver.
	Driver        string        `yaml:"driver" envconfig:"SESSION_DRIVER"`
	TTL           time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// ShopConfig holds the selling rules.
type ShopConfig struct {
	// PaymentAdminID reviews transfer receipts; the primary admin when zero.
	PaymentAdminID int64  `yaml:"payment_admin_id" envconfig:"SHOP_PAYMENT_ADMIN_ID"`
	TransferPhone  string `yaml:"transfer_phone" envconfig:"SHOP_TRANSFER_PHONE"`
	PhotoMaxMB     int    `yaml:"photo_max_mb"`
	FileMaxMB      int    `yaml:"file_max_mb"`
	ReceiptMaxMB   int    `yaml:"receipt_max_mb"`
	PriceMin       int    `yaml:"price_min"`
	PriceMax       int    `yaml:"price_max"`
	// PromptTTL is how long ephemeral admin prompts live.
	PromptTTL     time.Duration `yaml:"prompt_ttl" envconfig:"SHOP_PROMPT_TTL"`
	CancelKeyword string        `yaml:"cancel_keyword"`
}

// HealthConfig configures the HTTP health endpoint. An empty Listen disables it.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Storage  StorageConfig   `yaml:"storage"`
	Session  SessionConfig   `yaml:"session"`
	Shop     ShopConfig      `yaml:"shop"`
	Health   HealthConfig    `yaml:"health"`
}

// CoreConfig exposes the embedded core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// UsesDatabase reports whether any component needs Postgres.
func (c *Config) UsesDatabase() bool {
	return c.Storage.Driver == DriverPostgres || c.Session.Driver == DriverPostgres
}

// DatabaseConfig returns the database section, or nil when nothing uses it.
func (c *Config) DatabaseConfig() *database.Config {
	if !c.UsesDatabase() {
		return nil
	}
	return &c.Database
}

// ReviewAdminID is the admin that receives transfer receipts.
func (c *Config) ReviewAdminID() int64 {
	if c.Shop.PaymentAdminID != 0 {
		return c.Shop.PaymentAdminID
	}
	return c.Telegram.PrimaryAdmin()
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	driver, err := normalizeDriver("storage.driver", cfg.Storage.Driver, DriverPostgres)
	if err != nil {
		return err
	}
	cfg.Storage.Driver = driver
	if cfg.Session.Driver, err = normalizeDriver("session.driver", cfg.Session.Driver, driver); err != nil {
		return err
	}
	if cfg.UsesDatabase() {
		if err := cfg.Database.Normalize(); err != nil {
			return err
		}
	}

	if cfg.Session.TTL < 0 || cfg.Session.SweepInterval < 0 {
		return fmt.Errorf("session.ttl and session.sweep_interval must be >= 0")
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 10 * time.Minute
	}

	s := &cfg.Shop
	if s.PaymentAdminID < 0 {
		return fmt.Errorf("shop.payment_admin_id contains invalid id %d", s.PaymentAdminID)
	}
	s.TransferPhone = strings.TrimSpace(s.TransferPhone)
	if s.TransferPhone == "" {
		return fmt.Errorf("shop.transfer_phone is required")
	}
	setDefault(&s.PhotoMaxMB, 5)
	setDefault(&s.FileMaxMB, 20)
	setDefault(&s.ReceiptMaxMB, 5)
	setDefault(&s.PriceMax, 100000)
	if s.PriceMin < 0 || s.PriceMin > s.PriceMax {
		return fmt.Errorf("shop.price_min must be within 0..price_max")
	}
	if s.PromptTTL <= 0 {
		s.PromptTTL = 15 * time.Minute
	}
	s.CancelKeyword = strings.TrimSpace(s.CancelKeyword)
	if s.CancelKeyword == "" {
		s.CancelKeyword = "стоп"
	}
	return nil
}

func normalizeDriver(field, v, def string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "":
		return def, nil
	case DriverMemory, DriverPostgres:
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q; allowed: memory, postgres", field, v)
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
