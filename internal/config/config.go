// Package config loads the server configuration from a YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	JWT      JWT      `yaml:"jwt"`
	Purchase Purchase `yaml:"purchase"`
	Workers  Workers  `yaml:"workers"`
	CORS     CORS     `yaml:"cors"`
	Log      Log      `yaml:"log"`
	Seed     Seed     `yaml:"seed"`
}

type App struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type GRPC struct {
	// Addr is empty to disable the gRPC listener.
	Addr string `yaml:"addr"`
}

type Database struct {
	// Driver is "mysql" or "sqlite3".
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type Redis struct {
	// Addr is empty to run without a cache.
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"poolSize"`
	CatalogTTL     time.Duration `yaml:"catalogTTL"`
	IdempotencyTTL time.Duration `yaml:"idempotencyTTL"`
}

type JWT struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
	BcryptCost int           `yaml:"bcryptCost"`
}

type Purchase struct {
	MaxTicketsPerBuyer int           `yaml:"maxTicketsPerBuyer"`
	SaleCutoff         time.Duration `yaml:"saleCutoff"`
	TxTimeout          time.Duration `yaml:"txTimeout"`
	MaxRetries         int           `yaml:"maxRetries"`
}

type Workers struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queueSize"`
}

type CORS struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowedMethods   []string `yaml:"allowedMethods"`
	AllowedHeaders   []string `yaml:"allowedHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Seed is the default account created on an empty database.
type Seed struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func Default() Config {
	return Config{
		App: App{Name: "ticket-sale", Environment: "development"},
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC: GRPC{Addr: ":50051"},
		Database: Database{
			Driver:          "mysql",
			DSN:             "root:root@tcp(localhost:3306)/ticketsale?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: Redis{
			Addr:           "localhost:6379",
			PoolSize:       100,
			CatalogTTL:     30 * time.Second,
			IdempotencyTTL: 24 * time.Hour,
		},
		JWT: JWT{Expiration: 24 * time.Hour, BcryptCost: 10},
		Purchase: Purchase{
			MaxTicketsPerBuyer: 2,
			SaleCutoff:         7 * 24 * time.Hour,
			TxTimeout:          5 * time.Second,
			MaxRetries:         3,
		},
		Workers: Workers{Count: 10, QueueSize: 10000},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key"},
			MaxAge:         300,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path (optional) over the defaults, then applies TICKETD_*
// environment variables.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TICKETD_HTTP_ADDR":       &cfg.HTTP.Addr,
		"TICKETD_GRPC_ADDR":       &cfg.GRPC.Addr,
		"TICKETD_DATABASE_DRIVER": &cfg.Database.Driver,
		"TICKETD_DATABASE_DSN":    &cfg.Database.DSN,
		"TICKETD_REDIS_ADDR":      &cfg.Redis.Addr,
		"TICKETD_REDIS_PASSWORD":  &cfg.Redis.Password,
		"TICKETD_JWT_SECRET":      &cfg.JWT.Secret,
		"TICKETD_LOG_LEVEL":       &cfg.Log.Level,
		"TICKETD_LOG_FORMAT":      &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("TICKETD_PURCHASE_MAX_TICKETS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TICKETD_PURCHASE_MAX_TICKETS: %w", err)
		}
		cfg.Purchase.MaxTicketsPerBuyer = n
	}

	if v, ok := lookup("TICKETD_PURCHASE_SALE_CUTOFF"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICKETD_PURCHASE_SALE_CUTOFF: %w", err)
		}
		cfg.Purchase.SaleCutoff = d
	}

	return nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "mysql", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be mysql or sqlite3, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required (set TICKETD_JWT_SECRET)"))
	}
	if c.Purchase.MaxTicketsPerBuyer <= 0 {
		errs = append(errs, errors.New("purchase.maxTicketsPerBuyer must be positive"))
	}
	if c.Purchase.SaleCutoff <= 0 {
		errs = append(errs, errors.New("purchase.saleCutoff must be positive"))
	}
	if c.Workers.Count <= 0 {
		errs = append(errs, errors.New("workers.count must be positive"))
	}
	if c.Workers.QueueSize < 0 {
		errs = append(errs, errors.New("workers.queueSize must not be negative"))
	}

	return errors.Join(errs...)
}
