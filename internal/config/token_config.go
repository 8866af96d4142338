package config

import "time"

type TokenConfig interface {
	GetSigningSecret() string
	GetRefreshTokenExpiry() time.Duration
	GetSweepSchedule() string
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "dev-signing-secret")
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

// GetSweepSchedule is the cron spec for the expired refresh-token sweep.
func (Tokens) GetSweepSchedule() string {
	return GetEnv("TOKEN_SWEEP_SCHEDULE", "@hourly")
}
