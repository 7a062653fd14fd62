package worker

import (
	"context"
	"fmt"

	"hazina/internal/amqp"
	"hazina/internal/core"
	"hazina/internal/log"
	"hazina/internal/storage"
)

// LoanLister is the slice of the store the scanner reads.
type LoanLister interface {
	ActiveLoans(ctx context.Context, today core.Date) ([]storage.ActiveLoanStatus, error)
}

// OverduePublisher sends overdue notices to external subscribers.
type OverduePublisher interface {
	PublishLoanOverdue(ctx context.Context, msg *amqp.LoanOverdueMessage) error
}

// OverdueScanner walks the active loan book and publishes a notice for
// every loan past its due date. It never mutates the books; defaulting
// stays an administrative decision.
type OverdueScanner struct {
	loans     LoanLister
	publisher OverduePublisher
	logger    *log.Logger
}

func NewOverdueScanner(loans LoanLister, publisher OverduePublisher, logger *log.Logger) *OverdueScanner {
	return &OverdueScanner{
		loans:     loans,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Scan reports how many overdue loans it found and published.
func (w *OverdueScanner) Scan(ctx context.Context, today core.Date) (int, error) {
	statuses, err := w.loans.ActiveLoans(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list active loans: %w", err)
	}

	overdue := 0
	for _, st := range statuses {
		if st.DaysOverdue == 0 {
			continue
		}
		overdue++

		w.logger.WarnContext(ctx, "Loan overdue",
			log.FieldLoanID, st.Loan.ID,
			log.FieldMemberID, st.Loan.MemberID,
			log.FieldDaysOverdue, st.DaysOverdue,
			"outstanding_cents", st.Outstanding.Cents)

		if w.publisher == nil {
			continue
		}
		msg := amqp.NewLoanOverdueMessage(st.Loan.ID, st.Loan.MemberID, st.MemberName,
			st.Outstanding.Cents, st.DaysOverdue, st.Loan.DueDate.String())
		if err := w.publisher.PublishLoanOverdue(ctx, msg); err != nil {
			fields := log.NewFields().
				WithOperation(log.OpPublish).
				WithLoan(st.Loan.ID).
				WithError(err)
			w.logger.ErrorContext(ctx, "Failed to publish overdue notice", fields.ToSlice()...)
			// Keep scanning: the notice is advisory
		}
	}

	w.logger.InfoContext(ctx, "Overdue scan complete",
		log.FieldOperation, log.OpScan,
		"date", today.String(),
		"active_loans", len(statuses),
		"overdue", overdue)
	return overdue, nil
}
