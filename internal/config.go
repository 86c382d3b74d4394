package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const VaultKeySize = 32

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Merchant      MerchantConfig      `mapstructure:"merchant"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// StorageConfig selects the transaction store. "postgres" uses the database section,
// "bolt" keeps transactions in an embedded file.
type StorageConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=postgres bolt"`
	BoltPath string `mapstructure:"bolt_path"`
}

type SecurityConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type VaultConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" validate:"required,len=32"`
}

type MerchantConfig struct {
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
}

type PaymentConfig struct {
	PixExpiry           time.Duration `mapstructure:"pix_expiry"`
	MonthlyInterestRate float64       `mapstructure:"monthly_interest_rate"`
	MaxInstallments     int           `mapstructure:"max_installments"`
	GatewayTimeout      time.Duration `mapstructure:"gateway_timeout"`
	ApprovalRate        float64       `mapstructure:"approval_rate"`
	CardLatencyMin      time.Duration `mapstructure:"card_latency_min"`
	CardLatencyMax      time.Duration `mapstructure:"card_latency_max"`
	PixLatencyMin       time.Duration `mapstructure:"pix_latency_min"`
	PixLatencyMax       time.Duration `mapstructure:"pix_latency_max"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Env    string `mapstructure:"env"`
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- DEFAULTS -----------------

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.BoltPath == "" {
		c.Storage.BoltPath = "trustpay.db"
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Merchant.SignatureTolerance == 0 {
		c.Merchant.SignatureTolerance = 300 * time.Second
	}
	c.Payment.applyDefaults()
}

func (c *PaymentConfig) applyDefaults() {
	if c.PixExpiry == 0 {
		c.PixExpiry = 30 * time.Minute
	}
	if c.MonthlyInterestRate == 0 {
		c.MonthlyInterestRate = 0.03
	}
	if c.MaxInstallments == 0 {
		c.MaxInstallments = 24
	}
	if c.GatewayTimeout == 0 {
		c.GatewayTimeout = 10 * time.Second
	}
	if c.ApprovalRate == 0 {
		c.ApprovalRate = 0.85
	}
	if c.CardLatencyMin == 0 && c.CardLatencyMax == 0 {
		c.CardLatencyMin = 300 * time.Millisecond
		c.CardLatencyMax = 2500 * time.Millisecond
	}
	if c.PixLatencyMin == 0 && c.PixLatencyMax == 0 {
		c.PixLatencyMin = 200 * time.Millisecond
		c.PixLatencyMax = 1500 * time.Millisecond
	}
}

// ----------------- ENV -----------------

// LoadConfigFromEnv builds the configuration for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Storage: StorageConfig{
			Driver:   getEnv("STORAGE_DRIVER", "postgres"),
			BoltPath: getEnv("BOLT_PATH", "trustpay.db"),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Vault: VaultConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Merchant: MerchantConfig{
			SignatureTolerance: getEnvAsDuration("HMAC_TOLERANCE", 300*time.Second),
		},
		Payment: PaymentConfig{
			PixExpiry:           getEnvAsDuration("PIX_EXPIRY", 30*time.Minute),
			MonthlyInterestRate: getEnvAsFloat("MONTHLY_INTEREST_RATE", 0.03),
			MaxInstallments:     getEnvAsInt("MAX_INSTALLMENTS", 24),
			GatewayTimeout:      getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			ApprovalRate:        getEnvAsFloat("GATEWAY_APPROVAL_RATE", 0.85),
			CardLatencyMin:      getEnvAsDuration("GATEWAY_CARD_LATENCY_MIN", 300*time.Millisecond),
			CardLatencyMax:      getEnvAsDuration("GATEWAY_CARD_LATENCY_MAX", 2500*time.Millisecond),
			PixLatencyMin:       getEnvAsDuration("GATEWAY_PIX_LATENCY_MIN", 200*time.Millisecond),
			PixLatencyMax:       getEnvAsDuration("GATEWAY_PIX_LATENCY_MAX", 1500*time.Millisecond),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Env:    getEnv("APP_ENV", "production"),
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Vault.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("vault config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case "postgres", "bolt":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	if c.Driver == "bolt" && c.BoltPath == "" {
		return errors.New("bolt_path is required for the bolt driver")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	return nil
}

// Validate rejects any key that is not exactly 32 bytes. The service must not start without a usable key.
func (c *VaultConfig) Validate() error {
	if len(c.EncryptionKey) != VaultKeySize {
		return fmt.Errorf("encryption key must be exactly %d bytes, got %d", VaultKeySize, len(c.EncryptionKey))
	}
	return nil
}

func (c *PaymentConfig) Validate() error {
	if c.MonthlyInterestRate < 0 {
		return errors.New("monthly_interest_rate cannot be negative")
	}
	if c.MaxInstallments < 1 || c.MaxInstallments > 24 {
		return errors.New("max_installments must be between 1 and 24")
	}
	if c.ApprovalRate < 0 || c.ApprovalRate > 1 {
		return errors.New("approval_rate must be between 0 and 1")
	}
	if c.CardLatencyMax < c.CardLatencyMin || c.PixLatencyMax < c.PixLatencyMin {
		return errors.New("gateway latency max must be >= min")
	}
	return nil
}
