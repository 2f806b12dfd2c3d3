package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field is bound to an
// environment variable through its `env` tag.  Values without a default are
// required and Load refuses to start without them.
type Config struct {
	Env           string `env:"APP_ENV" envDefault:"dev"`                      // application environment (dev/test/prod)
	Port          string `env:"APP_PORT" envDefault:"8080"`                    // HTTP port to listen on
	Timezone      string `env:"APP_TIMEZONE" envDefault:"Europe/Berlin"`       // zone used to render dates at the desk
	DBUser        string `env:"DB_USER,required,notEmpty"`                     // database username
	DBPass        string `env:"DB_PASS"`                                       // database password (optional)
	DBHost        string `env:"DB_HOST" envDefault:"localhost"`                // database host address
	DBPort        string `env:"DB_PORT" envDefault:"3306"`                     // database port number
	DBName        string `env:"DB_NAME,required,notEmpty"`                     // database name
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`            // apply embedded migrations on start
	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`                  // secret used to verify staff JWTs
	RabbitURL     string `env:"RABBITMQ_URL"`                                  // broker for unsigned transactions; empty disables it
	SecretsKey    string `env:"SECRETS_KEY"`                                   // hex key for sealed provider credentials (64 hex chars)

	// Outbound fiscal signer (TSE) settings.
	SignerBaseURL    string        `env:"TSE_BASE_URL" envDefault:"https://kassensichv-middleware.fiskaly.com/api/v2"`
	SignerTimeout    time.Duration `env:"TSE_TIMEOUT" envDefault:"5s"`
	SignerMaxRetries uint          `env:"TSE_MAX_RETRIES" envDefault:"2"`

	// Outbound payment provider settings.
	MollieBaseURL    string        `env:"MOLLIE_BASE_URL" envDefault:"https://api.mollie.com/v2"`
	MollieTimeout    time.Duration `env:"MOLLIE_TIMEOUT" envDefault:"10s"`
	MollieMaxRetries uint          `env:"MOLLIE_MAX_RETRIES" envDefault:"2"`

	DefaultVATRate  string        `env:"DEFAULT_VAT_RATE" envDefault:"19"`   // percent applied to lines without a rate
	FinalizeLockTTL time.Duration `env:"FINALIZE_LOCK_TTL" envDefault:"30s"` // redis lock lifetime around signing
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Parse reads an optional .env file and then the process environment into a
// Config.  Missing required variables are reported as an error.
func Parse() (Config, error) {
	// .env is optional; the real environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Load is like Parse but halts the program when the configuration is
// incomplete.  It is meant for main packages.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Location resolves Timezone, falling back to UTC when the zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}
