package breaker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reaper/internal/adapters/config"
	"reaper/internal/domain/breaker"
	"reaper/internal/events"
	"reaper/internal/metrics"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

// Service governs circuit breaker recovery. Tripping happens inside the
// payout gateway; re-arming goes through the timelocked propose/veto/execute
// flow implemented here.
type Service struct {
	store store.Store
	pub   *events.Publisher
	cfg   config.BreakerConfig
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates a new breaker governance service
func NewService(st store.Store, pub *events.Publisher, cfg config.BreakerConfig, log *logger.Logger) *Service {
	return &Service{
		store: st,
		pub:   pub,
		cfg:   cfg,
		log:   log.With("component", "breaker"),
		now:   time.Now,
	}
}

// ProposeReset files a timelocked recovery proposal against the current trip.
// The proposal pins the trip sequence: if the breaker trips again before
// execution, the proposal is dead.
func (s *Service) ProposeReset(ctx context.Context, proposer string) (*breaker.Proposal, error) {
	now := s.now()
	var proposal *breaker.Proposal

	err := s.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		state, err := r.Breaker.GetState(ctx)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Wrap(errors.ErrBreakerNotTripped, "breaker never tripped")
		}
		if err != nil {
			return err
		}
		if !state.Tripped {
			return errors.ErrBreakerNotTripped
		}

		proposal = &breaker.Proposal{
			ID:           uuid.New(),
			Proposer:     proposer,
			TripSeq:      state.TripSeq,
			ExecuteAfter: now.Add(s.cfg.Timelock),
			ExpiresAt:    now.Add(s.cfg.Expiry),
			CreatedAt:    now,
		}
		return r.Breaker.CreateProposal(ctx, proposal)
	})
	if err != nil {
		return nil, err
	}

	s.pub.BreakerResetProposed(ctx, events.BreakerResetProposed{
		ProposalID:   proposal.ID,
		Proposer:     proposer,
		TripSeq:      proposal.TripSeq,
		ExecuteAfter: proposal.ExecuteAfter,
		ExpiresAt:    proposal.ExpiresAt,
	})

	s.log.Infow("Breaker reset proposed",
		"proposal_id", proposal.ID,
		"proposer", proposer,
		"execute_after", proposal.ExecuteAfter,
	)
	return proposal, nil
}

// VetoReset permanently kills a pending proposal. Guardians veto during the
// timelock; a veto can never be undone.
func (s *Service) VetoReset(ctx context.Context, proposalID uuid.UUID, reason string) error {
	now := s.now()

	err := s.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		p, err := r.Breaker.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.Executed {
			return errors.ErrProposalExecuted
		}
		if p.Vetoed {
			return errors.ErrProposalVetoed
		}

		p.Vetoed = true
		p.VetoReason = &reason
		p.VetoedAt = &now
		return r.Breaker.UpdateProposal(ctx, p)
	})
	if err != nil {
		return err
	}

	s.pub.BreakerResetVetoed(ctx, events.BreakerResetVetoed{
		ProposalID: proposalID,
		Reason:     reason,
	})

	s.log.Warnw("Breaker reset vetoed", "proposal_id", proposalID, "reason", reason)
	return nil
}

// ExecuteReset re-arms the breaker through a matured proposal. Guards are
// checked strictest first: an executed or vetoed proposal stays dead no
// matter the clock, a re-trip invalidates before timelock or expiry matter.
func (s *Service) ExecuteReset(ctx context.Context, proposalID uuid.UUID) error {
	now := s.now()

	err := s.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		p, err := r.Breaker.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		state, err := r.Breaker.GetState(ctx)
		if err != nil {
			return err
		}

		if p.Executed {
			return errors.ErrProposalExecuted
		}
		if p.Vetoed {
			return errors.ErrProposalVetoed
		}
		if state.TripSeq != p.TripSeq {
			return errors.Wrapf(errors.ErrProposalInvalidated, "breaker at seq %d, proposal pins %d", state.TripSeq, p.TripSeq)
		}
		if now.Before(p.ExecuteAfter) {
			return errors.Wrapf(errors.ErrTimelockActive, "executable at %s", p.ExecuteAfter)
		}
		if !now.Before(p.ExpiresAt) {
			return errors.Wrapf(errors.ErrProposalExpired, "expired at %s", p.ExpiresAt)
		}
		if !state.Tripped {
			return errors.ErrBreakerNotTripped
		}

		state.Tripped = false
		state.TrippedAt = nil
		state.TripReason = nil
		state.HourWindowStart = now
		state.HourlyTotal = decimal.Zero
		state.DayWindowStart = now
		state.DailyTotal = decimal.Zero
		state.UpdatedAt = now
		if err := r.Breaker.SaveState(ctx, state); err != nil {
			return errors.Wrap(err, "failed to re-arm breaker")
		}

		p.Executed = true
		p.ExecutedAt = &now
		return r.Breaker.UpdateProposal(ctx, p)
	})
	if err != nil {
		return err
	}

	metrics.BreakerTripped.Set(0)
	s.pub.BreakerResetExecuted(ctx, events.BreakerResetExecuted{ProposalID: proposalID})

	s.log.Infow("Breaker re-armed", "proposal_id", proposalID)
	return nil
}

// ResetPayoutCounters zeroes the rolling payout counters without touching the
// trip state. An operator escape hatch for a legitimate payout spike that
// would otherwise trip the ceilings.
func (s *Service) ResetPayoutCounters(ctx context.Context) error {
	now := s.now()

	err := s.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		state, err := r.Breaker.GetState(ctx)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		state.HourWindowStart = now
		state.HourlyTotal = decimal.Zero
		state.DayWindowStart = now
		state.DailyTotal = decimal.Zero
		state.UpdatedAt = now
		return r.Breaker.SaveState(ctx, state)
	})
	if err != nil {
		return err
	}

	s.pub.PayoutCountersReset(ctx, events.PayoutCountersReset{})
	s.log.Infow("Payout counters reset")
	return nil
}

// State returns the current breaker state.
func (s *Service) State(ctx context.Context) (*breaker.State, error) {
	return s.store.Repos().Breaker.GetState(ctx)
}

// Proposals returns recent recovery proposals, newest first.
func (s *Service) Proposals(ctx context.Context, limit int) ([]*breaker.Proposal, error) {
	return s.store.Repos().Breaker.ListProposals(ctx, limit)
}
