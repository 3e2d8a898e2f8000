package config

const (
	EnvPrefix = "SETTLEMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv    = "SETTLEMENT_APP_ENV"
	EnvPort      = "SETTLEMENT_APP_PORT"
	EnvDBDSN     = "SETTLEMENT_DB_DSN"
	EnvDBHost    = "SETTLEMENT_DB_HOST"
	EnvDBUser    = "SETTLEMENT_DB_USER"
	EnvDBName    = "SETTLEMENT_DB_NAME"
	EnvRedisURL  = "SETTLEMENT_REDIS_URL"
	EnvJWTSecret = "SETTLEMENT_JWT_SECRET"
	EnvJWTIssuer = "SETTLEMENT_JWT_ISSUER"
	EnvUseSQLite = "SETTLEMENT_USE_SQLITE"

	EnvTaxGSTRate            = "SETTLEMENT_TAX_GST_RATE"
	EnvCommissionPolicy      = "SETTLEMENT_COMMISSION_POLICY"
	EnvCommissionDefaultRate = "SETTLEMENT_COMMISSION_DEFAULT_RATE"
	EnvCommissionTierRates   = "SETTLEMENT_COMMISSION_TIER_RATES"
	EnvEscrowApprovalTrigger = "SETTLEMENT_ESCROW_APPROVAL_TRIGGER"

	CommissionPolicyFlat       = "flat"
	CommissionPolicySellerTier = "seller_tier"

	ApprovalTriggerFulfillment = "fulfillment"
	ApprovalTriggerHoldPeriod  = "hold_period"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
