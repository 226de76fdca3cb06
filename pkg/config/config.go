// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	TickIntervalSecond     int    `env:"TICK_INTERVAL_SECOND"      envDefault:"1"   envDocs:"dispatcher tick interval in second"`
	CooldownDurationSecond int    `env:"COOLDOWN_DURATION_SECOND"  envDefault:"90"  envDocs:"delay before finished-match players are requeued, in second"`
	BalanceTrialCount      int    `env:"BALANCE_TRIAL_COUNT"       envDefault:"0"   envDocs:"number of random split trials during match formation (0 means use default from code)"`
	BalanceStrategy        string `env:"BALANCE_STRATEGY"          envDefault:"randomized" envDocs:"balance strategy: randomized or exhaustive"`
	ExhaustiveSplitLimit   int    `env:"EXHAUSTIVE_SPLIT_LIMIT"    envDefault:"0"   envDocs:"max number of half-splits the exhaustive balance strategy will enumerate (0 means use default from code)"`
	StatusCacheTTLSecond   int    `env:"STATUS_CACHE_TTL_SECOND"   envDefault:"3"   envDocs:"TTL for queue status snapshots served to non-dispatcher readers"`
	QueueNamePrefix        string `env:"QUEUE_NAME_PREFIX"         envDefault:""    envDocs:"prefix prepended to queue display names"`
}

// FromEnv parses a Config from the process environment.
func FromEnv() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSecond) * time.Second
}

func (c Config) CooldownDuration() time.Duration {
	return time.Duration(c.CooldownDurationSecond) * time.Second
}

func (c Config) StatusCacheTTL() time.Duration {
	return time.Duration(c.StatusCacheTTLSecond) * time.Second
}

// Provider hands the dispatcher a config snapshot at the start of each tick.
// Keeping configuration out of package-level state makes ticks deterministic under test.
type Provider interface {
	Snapshot() Config
}

type staticProvider struct {
	cfg Config
}

// NewStaticProvider returns a Provider that always serves the same snapshot.
func NewStaticProvider(cfg Config) Provider {
	return staticProvider{cfg: cfg}
}

func (p staticProvider) Snapshot() Config {
	return p.cfg
}
