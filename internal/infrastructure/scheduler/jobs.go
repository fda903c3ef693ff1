package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job names
const (
	JobOverageReport     = "overage_report"
	JobMonthlyAllocation = "monthly_allocation"
)

// OverageBatchReporter pushes overage for every billed tenant
type OverageBatchReporter interface {
	ReportAll(ctx context.Context) (*billingapp.BatchReportResult, error)
}

// AccountLister lists every billing account
type AccountLister interface {
	ListAll(ctx context.Context) ([]*account.BillingAccount, error)
}

// MonthlyAllocator resets a tenant's credits to its tier allocation
type MonthlyAllocator interface {
	AllocateMonthly(ctx context.Context, tenantID uuid.UUID, t tier.Tier) (map[credit.Type]int64, error)
}

// NewOverageReportJob builds the job that pushes overage quantities
func NewOverageReportJob(schedule string, reporter OverageBatchReporter) Job {
	return Job{
		Name:     JobOverageReport,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			result, err := reporter.ReportAll(ctx)
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d overage pushes failed", result.Failed, result.Reported+result.Failed)
			}
			return nil
		},
	}
}

// MonthlyAllocationConfig holds the collaborators of the allocation job
type MonthlyAllocationConfig struct {
	Schedule  string
	Accounts  AccountLister
	Allocator MonthlyAllocator
	// Locker keeps replicas from allocating the same tenant twice; optional
	Locker shared.TenantLocker
	// LockTTL is how long a finished allocation blocks a repeat (default: 6 hours)
	LockTTL time.Duration
	Logger  *zap.Logger
}

// NewMonthlyAllocationJob builds the job that resets every tenant's credits
// to its tier allocation. A tenant that fails does not stop the others.
func NewMonthlyAllocationJob(cfg MonthlyAllocationConfig) Job {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 6 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return Job{
		Name:     JobMonthlyAllocation,
		Schedule: cfg.Schedule,
		Run: func(ctx context.Context) error {
			accounts, err := cfg.Accounts.ListAll(ctx)
			if err != nil {
				return fmt.Errorf("list billing accounts: %w", err)
			}

			var errs []error
			allocated, skipped := 0, 0
			for _, acct := range accounts {
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
					break
				}
				done, err := allocateOne(ctx, cfg, acct)
				switch {
				case err != nil:
					errs = append(errs, fmt.Errorf("tenant %s: %w", acct.TenantID, err))
				case done:
					allocated++
				default:
					skipped++
				}
			}

			cfg.Logger.Info("Monthly credit allocation finished",
				zap.Int("tenants", len(accounts)),
				zap.Int("allocated", allocated),
				zap.Int("skipped", skipped),
				zap.Int("failed", len(errs)),
			)
			return errors.Join(errs...)
		},
	}
}

// allocateOne keeps the lock after a successful allocation so that another
// replica firing the same schedule skips the tenant until the TTL passes
func allocateOne(ctx context.Context, cfg MonthlyAllocationConfig, acct *account.BillingAccount) (bool, error) {
	if cfg.Locker != nil {
		release, acquired, err := cfg.Locker.TryLock(ctx, JobMonthlyAllocation, acct.TenantID, cfg.LockTTL)
		if err != nil {
			return false, err
		}
		if !acquired {
			return false, nil
		}
		if _, err := cfg.Allocator.AllocateMonthly(ctx, acct.TenantID, acct.Tier); err != nil {
			release()
			return false, err
		}
		return true, nil
	}

	if _, err := cfg.Allocator.AllocateMonthly(ctx, acct.TenantID, acct.Tier); err != nil {
		return false, err
	}
	return true, nil
}
