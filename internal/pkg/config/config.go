// Package config reads service settings from the environment and ./.env through viper.
package config

import (
	"fmt"
	"time"

	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
	"github.com/spf13/viper"
)

const (
	DefaultMinEntryFee  uint64 = 100_000_000
	DefaultMaxEntryFee  uint64 = 1_000_000_000_000
	DefaultStallTimeout        = 24 * time.Hour
)

type GameConfig struct {
	MinEntryFee  uint64
	MaxEntryFee  uint64
	StallTimeout time.Duration
	LoanAprBps   uint16
	// PracticeBot is the platform wallet seated against players in practice
	// games. The empty address disables practice.
	PracticeBot  flow.Address
}

type PlatformConfig struct {
	Authority      flow.Address
	Treasury       flow.Address
	Oracle         flow.Address
	PlatformFeeBps uint16
	TreasuryFeeBps uint16
}

type HandoffConfig struct {
	MaxAttempts      int
	MinDelay         time.Duration
	MaxDelay         time.Duration
	PropagationDelay time.Duration
}

type PubsubConfig struct {
	ProjectId                string
	EventsTopic              string
	VrfFulfilledSubscription string
	DepositsSubscription     string
}

type Config struct {
	Port     string
	DbUrl    string
	Game     GameConfig
	Platform PlatformConfig
	Handoff  HandoffConfig
	Pubsub   PubsubConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":8080")
	v.SetDefault("MIN_ENTRY_FEE", DefaultMinEntryFee)
	v.SetDefault("MAX_ENTRY_FEE", DefaultMaxEntryFee)
	v.SetDefault("PLATFORM_FEE_BPS", 500)
	v.SetDefault("TREASURY_FEE_BPS", 1000)
	v.SetDefault("DELEGATION_MAX_ATTEMPTS", 10)
	v.SetDefault("DELEGATION_MIN_DELAY", time.Second)
	v.SetDefault("DELEGATION_MAX_DELAY", time.Second)
	v.SetDefault("ROLLUP_PROPAGATION_DELAY", 2*time.Second)
	v.SetDefault("STALL_TIMEOUT", DefaultStallTimeout)
	v.SetDefault("LOAN_APR", "0.052")
	v.SetDefault("EVENTS_TOPIC", "roulette.game.events")
	v.SetDefault("VRF_FULFILLED_SUBSCRIPTION", "roulette.vrf.fulfilled")
	v.SetDefault("DEPOSITS_SUBSCRIPTION", "roulette.wallet.deposits")
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	loanApr, err := settlement.ParseAPR(v.GetString("LOAN_APR"))
	if err != nil {
		return nil, fmt.Errorf("LOAN_APR: %w", err)
	}

	platformFee, err := bps(v, "PLATFORM_FEE_BPS")
	if err != nil {
		return nil, err
	}
	treasuryFee, err := bps(v, "TREASURY_FEE_BPS")
	if err != nil {
		return nil, err
	}
	if err := settlement.ValidateFees(platformFee, treasuryFee); err != nil {
		return nil, fmt.Errorf("fees %d/%d: %w", platformFee, treasuryFee, err)
	}

	cfg := &Config{
		Port:  v.GetString("PORT"),
		DbUrl: v.GetString("DB_URL"),
		Game: GameConfig{
			MinEntryFee:  v.GetUint64("MIN_ENTRY_FEE"),
			MaxEntryFee:  v.GetUint64("MAX_ENTRY_FEE"),
			StallTimeout: v.GetDuration("STALL_TIMEOUT"),
			LoanAprBps:   loanApr,
			PracticeBot:  flow.HexToAddress(v.GetString("PRACTICE_BOT")),
		},
		Platform: PlatformConfig{
			Authority:      flow.HexToAddress(v.GetString("PLATFORM_AUTHORITY")),
			Treasury:       flow.HexToAddress(v.GetString("PLATFORM_TREASURY")),
			Oracle:         flow.HexToAddress(v.GetString("ORACLE_AUTHORITY")),
			PlatformFeeBps: platformFee,
			TreasuryFeeBps: treasuryFee,
		},
		Handoff: HandoffConfig{
			MaxAttempts:      v.GetInt("DELEGATION_MAX_ATTEMPTS"),
			MinDelay:         v.GetDuration("DELEGATION_MIN_DELAY"),
			MaxDelay:         v.GetDuration("DELEGATION_MAX_DELAY"),
			PropagationDelay: v.GetDuration("ROLLUP_PROPAGATION_DELAY"),
		},
		Pubsub: PubsubConfig{
			ProjectId:                v.GetString("GOOGLE_PROJECT_ID"),
			EventsTopic:              v.GetString("EVENTS_TOPIC"),
			VrfFulfilledSubscription: v.GetString("VRF_FULFILLED_SUBSCRIPTION"),
			DepositsSubscription:     v.GetString("DEPOSITS_SUBSCRIPTION"),
		},
	}
	if cfg.Game.MinEntryFee == 0 || cfg.Game.MinEntryFee > cfg.Game.MaxEntryFee {
		return nil, fmt.Errorf("entry fee bounds %d..%d are invalid", cfg.Game.MinEntryFee, cfg.Game.MaxEntryFee)
	}
	return cfg, nil
}

func bps(v *viper.Viper, key string) (uint16, error) {
	value := v.GetInt(key)
	if value < 0 || value > settlement.BpsDenominator {
		return 0, fmt.Errorf("%s out of range: %d", key, value)
	}
	return uint16(value), nil
}
