package config

const (
	// EnvPrefix is intentionally empty: every field carries its full
	// CREATORKIT_-prefixed variable name in its envconfig tag.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CREATORKIT_DB_DSN"
	EnvDBHost = "CREATORKIT_DB_HOST"
	EnvDBUser = "CREATORKIT_DB_USER"
	EnvDBName = "CREATORKIT_DB_NAME"

	EnvCheckoutSuccessURL     = "CREATORKIT_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL      = "CREATORKIT_CHECKOUT_CANCEL_URL"
	EnvCheckoutGatewayTimeout = "CREATORKIT_CHECKOUT_GATEWAY_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
