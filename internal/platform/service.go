package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Initialize creates the ledger once. The caller becomes its authority.
func (s *Service) Initialize(ctx context.Context, caller, treasury flow.Address, fees settlement.Fees) (*model.Platform, *reject.ProblemWithTrace) {
	if err := fees.Validate(); err != nil {
		return nil, reject.Trace(err)
	}
	var created *model.Platform
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		_, err := tx.Platform()
		if err == nil {
			return reject.ErrPlatformAlreadyInit
		}
		if !errors.Is(err, reject.ErrPlatformNotInitialized) {
			return err
		}
		created = &model.Platform{
			Authority:      caller,
			Treasury:       treasury,
			PlatformFeeBps: fees.PlatformBps,
			TreasuryFeeBps: fees.TreasuryBps,
			InitializedAt:  s.now().Unix(),
		}
		return tx.SavePlatform(created)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}
	log.Info().Str("authority", caller.Hex()).Msg("Platform initialized")
	return created, nil
}

func (s *Service) Get(ctx context.Context) (*model.Platform, *reject.ProblemWithTrace) {
	var platform *model.Platform
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		p, err := tx.Platform()
		platform = p
		return err
	})
	return platform, reject.Trace(err)
}

// update runs fn on the ledger when the caller is its authority.
func (s *Service) update(ctx context.Context, caller flow.Address, fn func(tx store.Tx, p *model.Platform) error) (*model.Platform, *reject.ProblemWithTrace) {
	var updated *model.Platform
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		p, err := tx.Platform()
		if err != nil {
			return err
		}
		if p.Authority != caller {
			return reject.ErrUnauthorized
		}
		if err := fn(tx, p); err != nil {
			return err
		}
		updated = p
		return tx.SavePlatform(p)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}
	return updated, nil
}

func (s *Service) SetPaused(ctx context.Context, caller flow.Address, paused bool) (*model.Platform, *reject.ProblemWithTrace) {
	p, problem := s.update(ctx, caller, func(_ store.Tx, p *model.Platform) error {
		p.Paused = paused
		return nil
	})
	if problem == nil {
		log.Info().Bool("paused", paused).Msg("Platform pause flag changed")
	}
	return p, problem
}

func (s *Service) UpdateFees(ctx context.Context, caller flow.Address, fees settlement.Fees) (*model.Platform, *reject.ProblemWithTrace) {
	return s.update(ctx, caller, func(_ store.Tx, p *model.Platform) error {
		if err := fees.Validate(); err != nil {
			return err
		}
		p.PlatformFeeBps = fees.PlatformBps
		p.TreasuryFeeBps = fees.TreasuryBps
		return nil
	})
}

func (s *Service) TransferAuthority(ctx context.Context, caller, newAuthority flow.Address) (*model.Platform, *reject.ProblemWithTrace) {
	return s.update(ctx, caller, func(_ store.Tx, p *model.Platform) error {
		if newAuthority == flow.EmptyAddress {
			return reject.ErrUnauthorized
		}
		p.Authority = newAuthority
		return nil
	})
}

// WithdrawTreasury pays accrued treasury funds out to the treasury wallet.
func (s *Service) WithdrawTreasury(ctx context.Context, caller flow.Address, amount uint64) (*model.Platform, *reject.ProblemWithTrace) {
	return s.update(ctx, caller, func(tx store.Tx, p *model.Platform) error {
		if amount == 0 || amount > p.TreasuryBalance {
			return reject.ErrInsufficientTreasury
		}
		if err := store.Transfer(tx, model.TreasuryVaultAccount, model.WalletAccount(p.Treasury), amount); err != nil {
			return err
		}
		p.TreasuryBalance -= amount
		return nil
	})
}

// FundLendingPool moves liquidity from the authority's wallet into the pool loans are drawn from.
func (s *Service) FundLendingPool(ctx context.Context, caller flow.Address, amount uint64) (*model.Platform, *reject.ProblemWithTrace) {
	return s.update(ctx, caller, func(tx store.Tx, _ *model.Platform) error {
		return store.Transfer(tx, model.WalletAccount(caller), model.LendingPoolAccount, amount)
	})
}

// RecordDeposit credits a wallet with funds observed arriving on chain.
func (s *Service) RecordDeposit(ctx context.Context, address flow.Address, amount uint64) *reject.ProblemWithTrace {
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		return tx.Credit(model.WalletAccount(address), amount)
	})
	if err != nil {
		return reject.Trace(fmt.Errorf("deposit to %s: %w", address.Hex(), err))
	}
	return nil
}

func (s *Service) Balance(ctx context.Context, account string) (uint64, *reject.ProblemWithTrace) {
	var balance uint64
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		b, err := tx.Balance(account)
		balance = b
		return err
	})
	return balance, reject.Trace(err)
}
