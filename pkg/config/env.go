package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "KIRKI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "KIRKI_DB_DSN"
	EnvDBHost = "KIRKI_DB_HOST"
	EnvDBUser = "KIRKI_DB_USER"
	EnvDBName = "KIRKI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
