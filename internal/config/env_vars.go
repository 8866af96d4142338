package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar  = "PORT"
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	dbURLEnvVar = "DATABASE_URL"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetDatabaseURL() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Tenant Guard")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

// IsProduction gates the development-only escape hatches (the tenantId query
// parameter override in particular).
func (e EnvVars) IsProduction() bool {
	return strings.EqualFold(e.GetEnv(), "PROD") || strings.EqualFold(e.GetEnv(), "PRODUCTION")
}

// GetDatabaseURL returns the postgres connection string. When empty the
// server falls back to the in-memory stores.
func (EnvVars) GetDatabaseURL() string {
	return os.Getenv(dbURLEnvVar)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
