package config

type Config interface {
	EnvConfig
	TenantConfig
	TokenConfig
}

type mainConfig struct {
	EnvVars
	Tenancy
	Tokens
}

func New() Config {
	return mainConfig{}
}
