package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Tax          TaxConfig
	Commission   CommissionConfig
	Escrow       EscrowConfig
	Gateway      GatewayConfig
	Shipping     ShippingConfig
	Invoice      InvoiceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Tax.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SETTLEMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLEMENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SETTLEMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLEMENT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SETTLEMENT_LOG_FORMAT"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SETTLEMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"SETTLEMENT_DB_DSN"`
	Driver     string `envconfig:"SETTLEMENT_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"SETTLEMENT_SQLITE_PATH" default:"settlement.db"`

	LegacyHost     string `envconfig:"SETTLEMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLEMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLEMENT_DB_USER"`
	LegacyPassword string `envconfig:"SETTLEMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLEMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLEMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLEMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLEMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLEMENT_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"SETTLEMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLEMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLEMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SETTLEMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SETTLEMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SETTLEMENT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type RateLimitConfig struct {
	CheckoutPerSecond float64       `envconfig:"SETTLEMENT_RATE_LIMIT_CHECKOUT_RPS" default:"2"`
	CheckoutBurst     int           `envconfig:"SETTLEMENT_RATE_LIMIT_CHECKOUT_BURST" default:"5"`
	IdleTTL           time.Duration `envconfig:"SETTLEMENT_RATE_LIMIT_IDLE_TTL" default:"3m"`
	// VerifyPerWindow caps payment verifications per buyer across all instances.
	VerifyPerWindow int64         `envconfig:"SETTLEMENT_RATE_LIMIT_VERIFY_PER_WINDOW" default:"10"`
	VerifyWindow    time.Duration `envconfig:"SETTLEMENT_RATE_LIMIT_VERIFY_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SETTLEMENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SETTLEMENT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SETTLEMENT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"SETTLEMENT_PUBSUB_ORDERS_TOPIC" default:"settlement-order-events"`
	EscrowTopic       string `envconfig:"SETTLEMENT_PUBSUB_ESCROW_TOPIC" default:"settlement-escrow-events"`
	NotificationTopic string `envconfig:"SETTLEMENT_PUBSUB_NOTIFICATION_TOPIC" default:"settlement-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SETTLEMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SETTLEMENT_OUTBOX_RETENTION_DAYS" default:"30"`
}

type TaxConfig struct {
	GSTRate  decimal.Decimal `envconfig:"SETTLEMENT_TAX_GST_RATE" default:"18"`
	Currency string          `envconfig:"SETTLEMENT_TAX_CURRENCY" default:"INR"`
}

func (t TaxConfig) validate() error {
	if t.GSTRate.IsNegative() || t.GSTRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvTaxGSTRate)
	}
	return nil
}

type CommissionConfig struct {
	// Policy is flat or seller_tier.
	Policy      string             `envconfig:"SETTLEMENT_COMMISSION_POLICY" default:"flat"`
	DefaultRate decimal.Decimal    `envconfig:"SETTLEMENT_COMMISSION_DEFAULT_RATE" default:"10"`
	TierRates   map[string]float64 `envconfig:"SETTLEMENT_COMMISSION_TIER_RATES"`
}

func (c CommissionConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Policy)) {
	case CommissionPolicyFlat, CommissionPolicySellerTier:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvCommissionPolicy, CommissionPolicyFlat, CommissionPolicySellerTier)
	}
	if c.DefaultRate.IsNegative() || c.DefaultRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvCommissionDefaultRate)
	}
	for tier, rate := range c.TierRates {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("commission rate for tier %q must be between 0 and 100", tier)
		}
	}
	return nil
}

type EscrowConfig struct {
	// ApprovalTrigger is fulfillment or hold_period.
	ApprovalTrigger string        `envconfig:"SETTLEMENT_ESCROW_APPROVAL_TRIGGER" default:"fulfillment"`
	HoldPeriod      time.Duration `envconfig:"SETTLEMENT_ESCROW_HOLD_PERIOD" default:"168h"`
	LockTTL         time.Duration `envconfig:"SETTLEMENT_ESCROW_LOCK_TTL" default:"15s"`
	SweepInterval   time.Duration `envconfig:"SETTLEMENT_ESCROW_SWEEP_INTERVAL" default:"15m"`
	SweepBatchSize  int           `envconfig:"SETTLEMENT_ESCROW_SWEEP_BATCH_SIZE" default:"200"`
}

type GatewayConfig struct {
	BaseURL         string        `envconfig:"SETTLEMENT_GATEWAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	KeyID           string        `envconfig:"SETTLEMENT_GATEWAY_KEY_ID"`
	KeySecret       string        `envconfig:"SETTLEMENT_GATEWAY_KEY_SECRET"`
	Timeout         time.Duration `envconfig:"SETTLEMENT_GATEWAY_TIMEOUT" default:"15s"`
	VerificationTTL time.Duration `envconfig:"SETTLEMENT_GATEWAY_VERIFICATION_TTL" default:"24h"`
	// AttemptTTL is how long a buyer has to finish an online payment.
	AttemptTTL time.Duration `envconfig:"SETTLEMENT_GATEWAY_ATTEMPT_TTL" default:"2h"`
}

type ShippingConfig struct {
	BaseURL       string        `envconfig:"SETTLEMENT_SHIPPING_BASE_URL"`
	APIToken      string        `envconfig:"SETTLEMENT_SHIPPING_API_TOKEN"`
	PickupPincode string        `envconfig:"SETTLEMENT_SHIPPING_PICKUP_PINCODE"`
	Timeout       time.Duration `envconfig:"SETTLEMENT_SHIPPING_TIMEOUT" default:"5s"`
}

type InvoiceConfig struct {
	BaseURL  string        `envconfig:"SETTLEMENT_INVOICE_BASE_URL"`
	APIToken string        `envconfig:"SETTLEMENT_INVOICE_API_TOKEN"`
	Timeout  time.Duration `envconfig:"SETTLEMENT_INVOICE_TIMEOUT" default:"10s"`
}

// IsSQLite reports whether the sqlite dialector is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsSQLite() {
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
