package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	TokenModeJWT     = "jwt"
	TokenModeSession = "session"

	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type SecurityConfig struct {
	JWTSecret       string
	JWTIssuer       string
	TokenTTL        time.Duration
	TokenMode       string
	PasswordHasher  string
	BcryptCost      int
	StrictPasswords bool
	LoginRateLimit  float64
	LoginBurst      int
	SessionCacheTTL time.Duration
}

type WorkerConfig struct {
	ClaimInterval time.Duration
}

type JobsConfig struct {
	PurgeSchedule string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Worker           WorkerConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("GMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Security.TokenMode = strings.ToLower(strings.TrimSpace(cfg.Security.TokenMode))
	cfg.Security.PasswordHasher = strings.ToLower(strings.TrimSpace(cfg.Security.PasswordHasher))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server must not start with.
func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Security.JWTSecret) == "" {
		errs = append(errs, errors.New("security.jwtsecret is required"))
	}
	if c.Security.BcryptCost < 10 {
		errs = append(errs, fmt.Errorf("security.bcryptcost must be at least 10, got %d", c.Security.BcryptCost))
	}
	if c.Security.TokenTTL <= 0 {
		errs = append(errs, errors.New("security.tokenttl must be positive"))
	}
	switch c.Security.TokenMode {
	case TokenModeJWT, TokenModeSession:
	default:
		errs = append(errs, fmt.Errorf("unknown security.tokenmode %q", c.Security.TokenMode))
	}
	switch c.Security.PasswordHasher {
	case HasherBcrypt, HasherArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unknown security.passwordhasher %q", c.Security.PasswordHasher))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "gmp.db")
	v.SetDefault("database.maxopen", 20)
	v.SetDefault("database.maxidle", 5)
	v.SetDefault("database.connmaxlifetime", "30m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "auth:events")
	v.SetDefault("redis.group", "audit-writers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtissuer", "gmp-portal")
	v.SetDefault("security.tokenttl", "168h") // 7 days
	v.SetDefault("security.tokenmode", TokenModeJWT)
	v.SetDefault("security.passwordhasher", HasherBcrypt)
	v.SetDefault("security.bcryptcost", 12)
	v.SetDefault("security.strictpasswords", false)
	v.SetDefault("security.loginratelimit", 1.0)
	v.SetDefault("security.loginburst", 10)
	v.SetDefault("security.sessioncachettl", "1m")

	v.SetDefault("worker.claiminterval", "10s")

	v.SetDefault("jobs.purgeschedule", "0 */15 * * * *")

	v.SetDefault("allowcorsorigins", []string{})
}
