package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "biblioteka"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "BIBLIOTEKA_APP_ENV"
	EnvPort     = "BIBLIOTEKA_APP_PORT"
	EnvDBDSN    = "BIBLIOTEKA_DB_DSN"
	EnvDBHost   = "BIBLIOTEKA_DB_HOST"
	EnvDBUser   = "BIBLIOTEKA_DB_USER"
	EnvDBName   = "BIBLIOTEKA_DB_NAME"
	EnvRedisURL = "BIBLIOTEKA_REDIS_URL"

	EnvJWTSecret  = "BIBLIOTEKA_JWT_SECRET"
	EnvJWTIssuer  = "BIBLIOTEKA_JWT_ISSUER"
	EnvJWTExpMins = "BIBLIOTEKA_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID    = "BIBLIOTEKA_GCP_PROJECT_ID"
	EnvPubSubEventsTop = "BIBLIOTEKA_PUBSUB_EVENTS_TOPIC"
	EnvPubSubEventsSub = "BIBLIOTEKA_PUBSUB_EVENTS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	Password      PasswordConfig
	Circulation   CirculationConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Circulation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BIBLIOTEKA_APP_ENV" required:"true"`
	Port         string `envconfig:"BIBLIOTEKA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BIBLIOTEKA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIBLIOTEKA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BIBLIOTEKA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BIBLIOTEKA_DB_DSN"`
	Driver string `envconfig:"BIBLIOTEKA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BIBLIOTEKA_DB_HOST"`
	LegacyPort     int    `envconfig:"BIBLIOTEKA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIBLIOTEKA_DB_USER"`
	LegacyPassword string `envconfig:"BIBLIOTEKA_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIBLIOTEKA_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIBLIOTEKA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIBLIOTEKA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIBLIOTEKA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIBLIOTEKA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIBLIOTEKA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
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

type RedisConfig struct {
	URL          string        `envconfig:"BIBLIOTEKA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIBLIOTEKA_REDIS_ADDR"`
	Password     string        `envconfig:"BIBLIOTEKA_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIBLIOTEKA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIBLIOTEKA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIBLIOTEKA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIBLIOTEKA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIBLIOTEKA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIBLIOTEKA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BIBLIOTEKA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BIBLIOTEKA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BIBLIOTEKA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenDays  int    `envconfig:"BIBLIOTEKA_JWT_REFRESH_TOKEN_DAYS" default:"30"`
}

// RefreshTokenTTL returns the refresh token lifetime configured in days.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenDays <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenDays) * 24 * time.Hour
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BIBLIOTEKA_AUTH_RL_LOGIN_WINDOW" default:"5m"`
	LoginIPLimit       int           `envconfig:"BIBLIOTEKA_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"BIBLIOTEKA_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"BIBLIOTEKA_AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"BIBLIOTEKA_AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"BIBLIOTEKA_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"5"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BIBLIOTEKA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BIBLIOTEKA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BIBLIOTEKA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BIBLIOTEKA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BIBLIOTEKA_ARGON_KEY_LEN" default:"32"`
}

// CirculationConfig carries the business parameters of the lending desk.
type CirculationConfig struct {
	LoanPeriodDays          int    `envconfig:"BIBLIOTEKA_LOAN_PERIOD_DAYS" default:"14"`
	MaxExtensions           int    `envconfig:"BIBLIOTEKA_LOAN_MAX_EXTENSIONS" default:"1"`
	PickupWindowDays        int    `envconfig:"BIBLIOTEKA_RESERVATION_PICKUP_DAYS" default:"2"`
	MaxActiveReservations   int    `envconfig:"BIBLIOTEKA_RESERVATION_MAX_PER_USER" default:"5"`
	ReservationMinDays      int    `envconfig:"BIBLIOTEKA_RESERVATION_MIN_DAYS" default:"1"`
	ReservationMaxDays      int    `envconfig:"BIBLIOTEKA_RESERVATION_MAX_DAYS" default:"14"`
	FineDailyRate           string `envconfig:"BIBLIOTEKA_FINE_DAILY_RATE" default:"0.50"`
	FineCurrency            string `envconfig:"BIBLIOTEKA_FINE_CURRENCY" default:"PLN"`
	FineGraceDays           int    `envconfig:"BIBLIOTEKA_FINE_GRACE_DAYS" default:"0"`
	DueReminderLeadDays     int    `envconfig:"BIBLIOTEKA_DUE_REMINDER_LEAD_DAYS" default:"3"`
	OutboxRetentionDays     int    `envconfig:"BIBLIOTEKA_OUTBOX_RETENTION_DAYS" default:"14"`
	SweepBatchSize          int    `envconfig:"BIBLIOTEKA_SWEEP_BATCH_SIZE" default:"200"`
	CronIntervalMinutes     int    `envconfig:"BIBLIOTEKA_CRON_INTERVAL_MINUTES" default:"60"`
	InventoryCodeMaxLength  int    `envconfig:"BIBLIOTEKA_INVENTORY_CODE_MAX_LENGTH" default:"60"`
	InventoryCodeAutoPrefix string `envconfig:"BIBLIOTEKA_INVENTORY_CODE_PREFIX" default:"BC"`
}

func (c CirculationConfig) validate() error {
	if c.LoanPeriodDays <= 0 {
		return fmt.Errorf("loan period must be positive")
	}
	if c.PickupWindowDays <= 0 {
		return fmt.Errorf("pickup window must be positive")
	}
	if c.ReservationMinDays < 1 || c.ReservationMaxDays < c.ReservationMinDays {
		return fmt.Errorf("reservation expiry bounds are invalid")
	}
	rate, err := decimal.NewFromString(c.FineDailyRate)
	if err != nil {
		return fmt.Errorf("fine daily rate %q is not a decimal: %w", c.FineDailyRate, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("fine daily rate must not be negative")
	}
	if len(c.FineCurrency) != 3 {
		return fmt.Errorf("fine currency must be a 3-letter ISO code")
	}
	return nil
}

// DailyRate returns the parsed fine rate. validate() guarantees it parses.
func (c CirculationConfig) DailyRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.FineDailyRate)
	return rate
}

// LoanPeriod returns the loan period as a duration.
func (c CirculationConfig) LoanPeriod() time.Duration {
	return time.Duration(c.LoanPeriodDays) * 24 * time.Hour
}

// PickupWindow returns the reservation pickup window as a duration.
func (c CirculationConfig) PickupWindow() time.Duration {
	return time.Duration(c.PickupWindowDays) * 24 * time.Hour
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BIBLIOTEKA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BIBLIOTEKA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"BIBLIOTEKA_PUBSUB_EVENTS_TOPIC" default:"biblioteka-domain-events"`
	EventsSubscription string `envconfig:"BIBLIOTEKA_PUBSUB_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BIBLIOTEKA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BIBLIOTEKA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BIBLIOTEKA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"BIBLIOTEKA_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
}
