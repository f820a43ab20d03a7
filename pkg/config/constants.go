package config

const (
	// EnvPrefix scopes every environment variable the service reads.
	EnvPrefix = "REVLYTIC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "REVLYTIC_DB_DSN"
	EnvDBHost = "REVLYTIC_DB_HOST"
	EnvDBUser = "REVLYTIC_DB_USER"
	EnvDBName = "REVLYTIC_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
