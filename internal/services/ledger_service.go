package services

import (
	"context"
	"fmt"
	"log/slog"

	"hazina/internal/amqp"
	"hazina/internal/core"
	"hazina/internal/storage"
)

// ViewInvalidator drops memoized report views after a ledger write.
type ViewInvalidator interface {
	InvalidateAll()
}

// LedgerService orchestrates financial writes: the store commits them
// atomically, then the service publishes the event and invalidates any
// cached views. Publishing is best effort; the entry is already on the
// books when it runs.
type LedgerService struct {
	store      *storage.Store
	amqpClient *amqp.Client
	views      ViewInvalidator
}

func NewLedgerService(store *storage.Store, amqpClient *amqp.Client, views ViewInvalidator) *LedgerService {
	return &LedgerService{
		store:      store,
		amqpClient: amqpClient,
		views:      views,
	}
}

// RecordContribution posts a share contribution.
func (s *LedgerService) RecordContribution(ctx context.Context, c core.Contribution, actor string) (*storage.LedgerWrite, error) {
	w, err := s.store.CreateContribution(ctx, c, actor)
	if err != nil {
		return nil, fmt.Errorf("record contribution: %w", err)
	}
	s.afterWrite(ctx, w)
	return w, nil
}

// RecordRepayment posts a loan repayment.
func (s *LedgerService) RecordRepayment(ctx context.Context, r core.LoanRepayment, actor string) (*storage.LedgerWrite, error) {
	w, err := s.store.CreateRepayment(ctx, r, actor)
	if err != nil {
		return nil, fmt.Errorf("record repayment: %w", err)
	}
	s.afterWrite(ctx, w)
	return w, nil
}

// RecordPenalty posts a penalty.
func (s *LedgerService) RecordPenalty(ctx context.Context, p core.Penalty, actor string) (*storage.LedgerWrite, error) {
	w, err := s.store.CreatePenalty(ctx, p, actor)
	if err != nil {
		return nil, fmt.Errorf("record penalty: %w", err)
	}
	s.afterWrite(ctx, w)
	return w, nil
}

// DisburseLoan opens a loan. Disbursement has no ledger entry, but the
// active-loan views change.
func (s *LedgerService) DisburseLoan(ctx context.Context, l core.Loan, actor string) (int64, error) {
	id, err := s.store.CreateLoan(ctx, l, actor)
	if err != nil {
		return 0, fmt.Errorf("disburse loan: %w", err)
	}
	s.invalidate()
	return id, nil
}

// CloseLoan marks a loan paid once its outstanding balance is zero.
func (s *LedgerService) CloseLoan(ctx context.Context, loanID int64, actor string) error {
	if err := s.store.MarkLoanPaid(ctx, loanID, actor); err != nil {
		return fmt.Errorf("close loan: %w", err)
	}
	s.invalidate()
	return nil
}

// DefaultLoan marks a loan defaulted.
func (s *LedgerService) DefaultLoan(ctx context.Context, loanID int64, actor string) error {
	if err := s.store.MarkLoanDefaulted(ctx, loanID, actor); err != nil {
		return fmt.Errorf("default loan: %w", err)
	}
	s.invalidate()
	return nil
}

func (s *LedgerService) afterWrite(ctx context.Context, w *storage.LedgerWrite) {
	s.invalidate()
	if err := s.publishLedgerEvent(ctx, w); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"transaction_id", w.TransactionID, "error", err)
		// Don't fail the request - the entry is committed locally
	}
}

func (s *LedgerService) invalidate() {
	if s.views != nil {
		s.views.InvalidateAll()
	}
}

func (s *LedgerService) publishLedgerEvent(ctx context.Context, w *storage.LedgerWrite) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping ledger event")
		return nil
	}

	msg := amqp.NewLedgerEventMessage(string(w.Type),
		w.TransactionID, w.SourceID, w.MemberID, w.Amount.Cents, w.Date.String())
	return s.amqpClient.PublishLedgerEvent(ctx, msg)
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
