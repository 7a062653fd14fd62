package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LedgerEventMessage announces a committed ledger entry to external
// subscribers (notification senders, mirrors to bookkeeping tools).
// It carries identifiers and the posted amount; subscribers fetch any
// further detail from the database.
type LedgerEventMessage struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	TransactionID int64     `json:"transaction_id"`
	SourceID      int64     `json:"source_id"`
	MemberID      int64     `json:"member_id"`
	AmountCents   int64     `json:"amount_cents"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(typ string, transactionID, sourceID, memberID, amountCents int64, date string) *LedgerEventMessage {
	return &LedgerEventMessage{
		EventID:       uuid.NewString(),
		Type:          typ,
		TransactionID: transactionID,
		SourceID:      sourceID,
		MemberID:      memberID,
		AmountCents:   amountCents,
		Date:          date,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LoanOverdueMessage is published by the overdue scanner for each
// active loan past its due date.
type LoanOverdueMessage struct {
	EventID          string    `json:"event_id"`
	LoanID           int64     `json:"loan_id"`
	MemberID         int64     `json:"member_id"`
	MemberName       string    `json:"member_name"`
	OutstandingCents int64     `json:"outstanding_cents"`
	DaysOverdue      int       `json:"days_overdue"`
	DueDate          string    `json:"due_date"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewLoanOverdueMessage(loanID, memberID int64, memberName string, outstandingCents int64, daysOverdue int, dueDate string) *LoanOverdueMessage {
	return &LoanOverdueMessage{
		EventID:          uuid.NewString(),
		LoanID:           loanID,
		MemberID:         memberID,
		MemberName:       memberName,
		OutstandingCents: outstandingCents,
		DaysOverdue:      daysOverdue,
		DueDate:          dueDate,
		Timestamp:        time.Now(),
	}
}

func (m *LoanOverdueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LoanOverdueMessageFromJSON(data []byte) (*LoanOverdueMessage, error) {
	var msg LoanOverdueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
