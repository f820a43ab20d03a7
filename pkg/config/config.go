package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	Sync    SyncConfig
	Rates   RatesConfig
	Flags   FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REVLYTIC_APP_ENV" required:"true"`
	Port         string `envconfig:"REVLYTIC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"REVLYTIC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REVLYTIC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"REVLYTIC_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"REVLYTIC_DB_DSN"`
	Driver string `envconfig:"REVLYTIC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REVLYTIC_DB_HOST"`
	LegacyPort     int    `envconfig:"REVLYTIC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REVLYTIC_DB_USER"`
	LegacyPassword string `envconfig:"REVLYTIC_DB_PASSWORD"`
	LegacyName     string `envconfig:"REVLYTIC_DB_NAME"`
	LegacySSLMode  string `envconfig:"REVLYTIC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REVLYTIC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REVLYTIC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REVLYTIC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REVLYTIC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REVLYTIC_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"REVLYTIC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REVLYTIC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REVLYTIC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REVLYTIC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REVLYTIC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SyncConfig shapes the chunked historical backfill. The defaults match
// the business rule of 30-day chunks over a 365-day horizon, sized so a
// single chunk stays well inside the external execution time ceiling.
type SyncConfig struct {
	ChunkSizeDays      int           `envconfig:"REVLYTIC_SYNC_CHUNK_SIZE_DAYS" default:"30"`
	HorizonDays        int           `envconfig:"REVLYTIC_SYNC_HORIZON_DAYS" default:"365"`
	PollInterval       time.Duration `envconfig:"REVLYTIC_SYNC_POLL_INTERVAL" default:"15s"`
	CancelCheckDays    int           `envconfig:"REVLYTIC_SYNC_CANCEL_CHECK_DAYS" default:"5"`
	RecentReportGrace  int           `envconfig:"REVLYTIC_SYNC_RECENT_REPORT_GRACE_DAYS" default:"3"`
	AssumedPlatformFee float64       `envconfig:"REVLYTIC_SYNC_ASSUMED_PLATFORM_FEE" default:"0.15"`
}

type RatesConfig struct {
	BaseCurrency string `envconfig:"REVLYTIC_RATES_BASE_CURRENCY" default:"USD"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REVLYTIC_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
