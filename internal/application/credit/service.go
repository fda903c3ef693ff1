// Package credit implements the AI credit ledger operations: balance reads,
// debits, credits, monthly allocation and add-on purchases.
package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/application/metering"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHistoryLimit bounds History when the caller passes no limit
const DefaultHistoryLimit = 50

// DebitResult is the outcome of a debit. An insufficient balance is reported
// with Success=false and the unchanged balance, not as an error.
type DebitResult struct {
	Success   bool  `json:"success"`
	Remaining int64 `json:"remaining"`
}

// AuditResult compares the stored head of a ledger with a full replay
type AuditResult struct {
	CreditType      credit.Type `json:"credit_type"`
	Entries         int         `json:"entries"`
	StoredBalance   int64       `json:"stored_balance"`
	ReplayedBalance int64       `json:"replayed_balance"`
	Consistent      bool        `json:"consistent"`
	Problem         string      `json:"problem,omitempty"`
}

// Service handles credit ledger operations
type Service struct {
	uow     metering.UnitOfWork
	ledger  credit.LedgerRepository
	metrics *telemetry.MeteringMetrics
	clock   shared.Clock
	logger  *zap.Logger
}

// ServiceConfig contains optional collaborators of Service
type ServiceConfig struct {
	Metrics *telemetry.MeteringMetrics
	Clock   shared.Clock
}

// NewService creates a credit Service. ledger serves reads outside a unit of work.
func NewService(uow metering.UnitOfWork, ledger credit.LedgerRepository, logger *zap.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{
		uow:     uow,
		ledger:  ledger,
		metrics: cfg.Metrics,
		clock:   clock,
		logger:  logger,
	}
}

// GetBalance returns the current balance, 0 for an empty ledger
func (s *Service) GetBalance(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (int64, error) {
	if !creditType.IsValid() {
		return 0, credit.ErrInvalidType
	}
	latest, err := s.ledger.Latest(ctx, tenantID, creditType)
	if err != nil {
		return 0, fmt.Errorf("read latest ledger entry: %w", err)
	}
	return credit.HeadOf(latest).Balance, nil
}

// GetAllBalances returns the balance of every credit type, 0 where the ledger is empty
func (s *Service) GetAllBalances(ctx context.Context, tenantID uuid.UUID) (map[credit.Type]int64, error) {
	latest, err := s.ledger.LatestAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("read latest ledger entries: %w", err)
	}
	return balancesFrom(latest), nil
}

// Debit consumes amount credits if the balance covers it.
func (s *Service) Debit(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, amount int64, description string) (*DebitResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "debit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCreditType, creditType,
		telemetry.SpanAttrAmount, amount,
	)

	if err := validateAmount(creditType, amount); err != nil {
		return nil, err
	}

	var result DebitResult
	err := s.uow.Execute(ctx, func(tx metering.Repositories) error {
		if _, err := tx.Accounts().LockForUpdate(ctx, tenantID); err != nil {
			return fmt.Errorf("lock billing account: %w", err)
		}
		latest, err := tx.Ledger().Latest(ctx, tenantID, creditType)
		if err != nil {
			return fmt.Errorf("read latest ledger entry: %w", err)
		}
		head := credit.HeadOf(latest)

		entry, err := credit.NewDelta(head, credit.EntryParams{
			TenantID:    tenantID,
			CreditType:  creditType,
			Amount:      -amount,
			Description: description,
		}, s.clock())
		if errors.Is(err, shared.ErrInsufficientBalance) {
			result = DebitResult{Success: false, Remaining: head.Balance}
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return fmt.Errorf("append debit entry: %w", err)
		}
		result = DebitResult{Success: true, Remaining: entry.BalanceAfter}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordCreditDebit(ctx, creditType.String(), amount, result.Success)
	if !result.Success {
		s.logger.Info("Credit debit rejected: insufficient balance",
			zap.String("tenant_id", tenantID.String()),
			zap.String("credit_type", creditType.String()),
			zap.Int64("requested", amount),
			zap.Int64("balance", result.Remaining),
		)
	}
	telemetry.SetAttributes(span, "success", result.Success, "remaining", result.Remaining)
	return &result, nil
}

// Credit adds amount credits and returns the new balance. A non-empty
// externalRef that was already credited for the type is not applied again.
func (s *Service) Credit(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, amount int64, description, externalRef string) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "credit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCreditType, creditType,
		telemetry.SpanAttrAmount, amount,
	)

	if err := validateAmount(creditType, amount); err != nil {
		return 0, err
	}

	var balance int64
	var replayed bool
	err := s.uow.Execute(ctx, func(tx metering.Repositories) error {
		if _, err := tx.Accounts().LockForUpdate(ctx, tenantID); err != nil {
			return fmt.Errorf("lock billing account: %w", err)
		}
		latest, err := tx.Ledger().Latest(ctx, tenantID, creditType)
		if err != nil {
			return fmt.Errorf("read latest ledger entry: %w", err)
		}
		head := credit.HeadOf(latest)

		if externalRef != "" {
			exists, err := tx.Ledger().ExistsByPaymentRef(ctx, tenantID, creditType, externalRef)
			if err != nil {
				return fmt.Errorf("check payment reference: %w", err)
			}
			if exists {
				balance, replayed = head.Balance, true
				return nil
			}
		}

		entry, err := credit.NewDelta(head, credit.EntryParams{
			TenantID:           tenantID,
			CreditType:         creditType,
			Amount:             amount,
			Description:        description,
			ExternalPaymentRef: externalRef,
		}, s.clock())
		if err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return fmt.Errorf("append credit entry: %w", err)
		}
		balance = entry.BalanceAfter
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	if replayed {
		s.logger.Info("Credit already applied for payment reference",
			zap.String("tenant_id", tenantID.String()),
			zap.String("credit_type", creditType.String()),
			zap.String("external_ref", externalRef),
		)
	} else {
		s.metrics.RecordCreditGrant(ctx, creditType.String(), amount)
	}
	return balance, nil
}

// AllocateMonthly writes a reset entry to the tier's monthly allocation for
// every credit type the tier grants. Types with a zero allocation are left as is.
// It returns the balances after the allocation.
func (s *Service) AllocateMonthly(ctx context.Context, tenantID uuid.UUID, t tier.Tier) (map[credit.Type]int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "allocate_monthly")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), telemetry.SpanAttrTier, t)

	if !t.IsValid() {
		return nil, tier.ErrInvalidTier
	}

	var balances map[credit.Type]int64
	allocated := make(map[credit.Type]int64)
	err := s.uow.Execute(ctx, func(tx metering.Repositories) error {
		if _, err := tx.Accounts().LockForUpdate(ctx, tenantID); err != nil {
			return fmt.Errorf("lock billing account: %w", err)
		}
		latest, err := tx.Ledger().LatestAll(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("read latest ledger entries: %w", err)
		}
		balances = balancesFrom(latest)

		now := s.clock()
		for _, ct := range credit.AllTypes() {
			allocation, err := tier.MonthlyAllocation(t, ct)
			if err != nil {
				return err
			}
			if allocation == 0 {
				continue
			}
			entry, err := credit.NewReset(credit.HeadOf(latest[ct]), credit.EntryParams{
				TenantID:    tenantID,
				CreditType:  ct,
				Amount:      allocation,
				Description: fmt.Sprintf("Monthly %s allocation", t.DisplayName()),
			}, now)
			if err != nil {
				return err
			}
			if err := tx.Ledger().Append(ctx, entry); err != nil {
				return fmt.Errorf("append allocation for %s: %w", ct, err)
			}
			balances[ct] = entry.BalanceAfter
			allocated[ct] = allocation
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for ct, amount := range allocated {
		s.metrics.RecordCreditGrant(ctx, ct.String(), amount)
	}
	s.logger.Info("Monthly credits allocated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("tier", t.String()),
	)
	return balances, nil
}

// PurchaseAddon multiplies every current balance by the add-on multiplier,
// writing one delta per credit type with a non-zero balance. A payment
// reference that was already applied leaves the ledgers untouched. When every
// balance is zero the add-on grants nothing and no entry carries the payment
// reference, so the purchase is logged at warn level for reconciliation.
func (s *Service) PurchaseAddon(ctx context.Context, tenantID uuid.UUID, addon credit.AddonType, externalRef string) (map[credit.Type]int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "purchase_addon")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), "addon", string(addon))

	if !addon.IsValid() {
		return nil, credit.ErrInvalidAddon
	}

	var balances map[credit.Type]int64
	granted := make(map[credit.Type]int64)
	replayed := false
	err := s.uow.Execute(ctx, func(tx metering.Repositories) error {
		if _, err := tx.Accounts().LockForUpdate(ctx, tenantID); err != nil {
			return fmt.Errorf("lock billing account: %w", err)
		}
		latest, err := tx.Ledger().LatestAll(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("read latest ledger entries: %w", err)
		}
		balances = balancesFrom(latest)

		if externalRef != "" {
			for _, ct := range credit.AllTypes() {
				exists, err := tx.Ledger().ExistsByPaymentRef(ctx, tenantID, ct, externalRef)
				if err != nil {
					return fmt.Errorf("check payment reference: %w", err)
				}
				if exists {
					replayed = true
					return nil
				}
			}
		}

		now := s.clock()
		for _, ct := range credit.AllTypes() {
			bonus := addon.BonusFor(balances[ct])
			if bonus == 0 {
				continue
			}
			entry, err := credit.NewDelta(credit.HeadOf(latest[ct]), credit.EntryParams{
				TenantID:           tenantID,
				CreditType:         ct,
				Amount:             bonus,
				Description:        fmt.Sprintf("%s add-on (x%d)", addon, addon.Multiplier()),
				ExternalPaymentRef: externalRef,
			}, now)
			if err != nil {
				return err
			}
			if err := tx.Ledger().Append(ctx, entry); err != nil {
				return fmt.Errorf("append add-on credit for %s: %w", ct, err)
			}
			balances[ct] = entry.BalanceAfter
			granted[ct] = bonus
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("addon", string(addon)),
		zap.String("external_payment_ref", externalRef),
	}
	switch {
	case replayed:
		s.logger.Info("Credit add-on already applied", fields...)
	case len(granted) == 0:
		telemetry.AddEvent(span, "addon_granted_nothing", "external_payment_ref", externalRef)
		s.logger.Warn("Credit add-on granted nothing, all balances are zero", fields...)
	default:
		for ct, bonus := range granted {
			s.metrics.RecordCreditGrant(ctx, ct.String(), bonus)
		}
		s.logger.Info("Credit add-on applied", append(fields, zap.Int("ledgers_credited", len(granted)))...)
	}
	return balances, nil
}

// History returns the newest entries of a ledger first
func (s *Service) History(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, limit int) ([]credit.Entry, error) {
	if !creditType.IsValid() {
		return nil, credit.ErrInvalidType
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := s.ledger.ListRecent(ctx, tenantID, creditType, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// Audit replays a ledger from its first entry and compares the result with the stored head
func (s *Service) Audit(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (*AuditResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "audit")
	defer span.End()

	if !creditType.IsValid() {
		return nil, credit.ErrInvalidType
	}
	entries, err := s.ledger.List(ctx, tenantID, creditType, 0)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	result := &AuditResult{CreditType: creditType, Entries: len(entries)}
	if len(entries) > 0 {
		result.StoredBalance = entries[len(entries)-1].Header().BalanceAfter
	}

	replayed, err := credit.Replay(entries)
	if errors.Is(err, credit.ErrLedgerCorrupt) {
		var de *shared.DomainError
		if errors.As(err, &de) {
			result.Problem = de.Message
		}
		s.logger.Error("Credit ledger failed audit",
			zap.String("tenant_id", tenantID.String()),
			zap.String("credit_type", creditType.String()),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.ReplayedBalance = replayed
	result.Consistent = replayed == result.StoredBalance
	return result, nil
}

func validateAmount(creditType credit.Type, amount int64) error {
	if !creditType.IsValid() {
		return credit.ErrInvalidType
	}
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	return nil
}

func balancesFrom(latest map[credit.Type]credit.Entry) map[credit.Type]int64 {
	balances := make(map[credit.Type]int64, len(credit.AllTypes()))
	for _, ct := range credit.AllTypes() {
		balances[ct] = credit.HeadOf(latest[ct]).Balance
	}
	return balances
}
