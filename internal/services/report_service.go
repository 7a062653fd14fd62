package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"hazina/internal/cache"
	"hazina/internal/core"
	"hazina/internal/storage"
)

// GroupStatement is the group-wide view assembled for meetings: ledger
// totals, the active loan book, and the member roll.
type GroupStatement struct {
	AsOf    core.Date
	Totals  storage.LedgerTotals
	Loans   []storage.ActiveLoanStatus
	Members []core.Member
}

// ReportService serves derived views, memoized briefly between ledger
// writes. Every entry point recomputes from the ledger on a cache miss.
type ReportService struct {
	store      *storage.Store
	portfolios *cache.LRUCache[*storage.Portfolio]
	statements *cache.LRUCache[*GroupStatement]
}

func NewReportService(store *storage.Store) *ReportService {
	return &ReportService{
		store:      store,
		portfolios: cache.NewLRUCache[*storage.Portfolio](256, 5*time.Minute),
		statements: cache.NewLRUCache[*GroupStatement](16, 5*time.Minute),
	}
}

// InvalidateAll drops every memoized view. The ledger service calls it
// after each committed write.
func (s *ReportService) InvalidateAll() {
	s.portfolios.Clear()
	s.statements.Clear()
}

// MemberPortfolio returns a member's position, cached by member id.
func (s *ReportService) MemberPortfolio(ctx context.Context, memberID int64) (*storage.Portfolio, error) {
	key := strconv.FormatInt(memberID, 10)
	if p, ok := s.portfolios.Get(key); ok {
		return p, nil
	}

	p, err := s.store.MemberPortfolio(ctx, memberID)
	if err != nil {
		return nil, err
	}
	s.portfolios.Set(key, p)
	return p, nil
}

// ActiveLoans returns the active loan book as of today. Not cached: the
// overdue-days column depends on the caller's clock.
func (s *ReportService) ActiveLoans(ctx context.Context, today core.Date) ([]storage.ActiveLoanStatus, error) {
	return s.store.ActiveLoans(ctx, today)
}

// GroupStatement assembles the meeting view, fanning the three reads
// out concurrently.
func (s *ReportService) GroupStatement(ctx context.Context, asOf core.Date) (*GroupStatement, error) {
	key := asOf.String()
	if st, ok := s.statements.Get(key); ok {
		return st, nil
	}

	st := &GroupStatement{AsOf: asOf}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		totals, err := s.store.GroupSummary(gctx)
		if err != nil {
			return fmt.Errorf("group summary: %w", err)
		}
		st.Totals = *totals
		return nil
	})
	g.Go(func() error {
		loans, err := s.store.ActiveLoans(gctx, asOf)
		if err != nil {
			return fmt.Errorf("active loans: %w", err)
		}
		st.Loans = loans
		return nil
	})
	g.Go(func() error {
		members, err := s.store.ListMembers(gctx, false)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		st.Members = members
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.statements.Set(key, st)
	return st, nil
}
