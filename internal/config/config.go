package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"regexp"  // regexp validates the admin passcode shape
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// DefaultAdminPasscode is only accepted outside prod.
const DefaultAdminPasscode = "1234"

var passcodeShape = regexp.MustCompile(`^\d{4,8}$`)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The MySQL fields are only required when
// StoreDriver is mysql.
type Config struct {
	Env              string        // application environment (e.g. "dev", "prod")
	Port             string        // HTTP port to listen on
	StoreDriver      string        // "mysql" or "memory"
	DBUser           string        // database username
	DBPass           string        // database password (optional)
	DBHost           string        // database host address
	DBPort           string        // database port number
	DBName           string        // database name
	MigrateOnStart   bool          // run goose migrations before serving
	JWTSecret        string        // secret used to sign admin JWTs
	AdminTTLMin      int           // admin token time-to-live in minutes
	AdminPasscode    string        // 4-8 digit passcode for the admin login
	BcryptCost       int           // bcrypt cost for hashing the passcode
	ExpirationPolicy string        // default expirationHandling (MANUAL or AUTO)
	QRFormat         string        // default qrFormat (LEGACY or APP1)
	SweepInterval    time.Duration // background sweep period; 0 disables it
	RetryAttempts    int           // lifecycle retries on a lost version race
	RetryBaseDelay   time.Duration // first retry delay; doubles per attempt
	RabbitURL        string        // broker for the audit event feed
	EventsEnabled    bool          // publish audit events and run the archive consumer
	EventLogDir      string        // directory the archive consumer writes to
}

// Load reads configuration values from environment variables and returns a
// Config. Missing required variables or invalid values cause the program to
// exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:              envStr("APP_ENV", "dev"),           // environment (dev/test/prod)
		Port:             envStr("APP_PORT", "8080"),         // port to bind the HTTP server
		StoreDriver:      strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		DBPass:           os.Getenv("DB_PASS"),               // database password (empty allowed)
		MigrateOnStart:   envBool("MIGRATE_ON_START", false),
		JWTSecret:        must("JWT_SECRET"),                 // secret used for signing JWTs
		AdminTTLMin:      envInt("ADMIN_TOKEN_TTL_MIN", 480), // 8h admin sessions
		AdminPasscode:    envStr("ADMIN_PASSCODE", DefaultAdminPasscode),
		BcryptCost:       envInt("BCRYPT_COST", 10),          // bcrypt cost factor
		ExpirationPolicy: strings.ToUpper(envStr("EXPIRATION_POLICY", "MANUAL")),
		QRFormat:         strings.ToUpper(envStr("QR_FORMAT", "LEGACY")),
		SweepInterval:    envDur("SWEEP_INTERVAL", time.Minute),
		RetryAttempts:    envInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay:   envDur("RETRY_BASE_DELAY", 100*time.Millisecond),
		RabbitURL:        rabbitURL(),
		EventsEnabled:    envBool("EVENTS_ENABLED", false),
		EventLogDir:      envStr("EVENT_LOG_DIR", "logs"),
	}
	if cfg.StoreDriver == DriverMySQL {
		cfg.DBUser = must("DB_USER") // database user
		cfg.DBHost = must("DB_HOST") // database host
		cfg.DBPort = must("DB_PORT") // database port
		cfg.DBName = must("DB_NAME") // database name
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// Validate checks values that have a fixed shape.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMySQL, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %s or %s, got %q", DriverMySQL, DriverMemory, c.StoreDriver)
	}
	if !passcodeShape.MatchString(c.AdminPasscode) {
		return fmt.Errorf("ADMIN_PASSCODE must be 4-8 digits")
	}
	if c.Env == "prod" && c.AdminPasscode == DefaultAdminPasscode {
		return fmt.Errorf("ADMIN_PASSCODE must be changed from the default in prod")
	}
	if c.ExpirationPolicy != "MANUAL" && c.ExpirationPolicy != "AUTO" {
		return fmt.Errorf("EXPIRATION_POLICY must be MANUAL or AUTO, got %q", c.ExpirationPolicy)
	}
	if c.QRFormat != "LEGACY" && c.QRFormat != "APP1" {
		return fmt.Errorf("QR_FORMAT must be LEGACY or APP1, got %q", c.QRFormat)
	}
	if c.AdminTTLMin <= 0 {
		return fmt.Errorf("ADMIN_TOKEN_TTL_MIN must be positive")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must not be negative")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
