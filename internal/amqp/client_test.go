package amqp

import (
	"testing"
	"time"
)

func TestNewLedgerEventMessage(t *testing.T) {
	msg := NewLedgerEventMessage("Contribution", 42, 7, 3, 200000, "2025-02-01")

	if msg.Type != "Contribution" {
		t.Errorf("Type = %v, want Contribution", msg.Type)
	}
	if msg.TransactionID != 42 || msg.SourceID != 7 || msg.MemberID != 3 {
		t.Errorf("ids = %d/%d/%d, want 42/7/3", msg.TransactionID, msg.SourceID, msg.MemberID)
	}
	if msg.AmountCents != 200000 {
		t.Errorf("AmountCents = %v, want 200000", msg.AmountCents)
	}
	if msg.EventID == "" {
		t.Error("EventID should not be empty")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}

	// Every message gets its own event id.
	other := NewLedgerEventMessage("Contribution", 42, 7, 3, 200000, "2025-02-01")
	if other.EventID == msg.EventID {
		t.Error("EventID should be unique per message")
	}
}

func TestLedgerEventMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	msg := &LedgerEventMessage{
		EventID:       "evt-1",
		Type:          "Penalty",
		TransactionID: 9,
		SourceID:      4,
		MemberID:      2,
		AmountCents:   50000,
		Date:          "2025-02-01",
		Timestamp:     timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := LedgerEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("LedgerEventMessageFromJSON() error = %v", err)
	}

	if parsed.EventID != msg.EventID || parsed.Type != msg.Type {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
	if parsed.AmountCents != msg.AmountCents || parsed.Date != msg.Date {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestLedgerEventMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"transaction_id": "not_a_number"}`)

	if _, err := LedgerEventMessageFromJSON(invalidJSON); err == nil {
		t.Error("LedgerEventMessageFromJSON() should fail with invalid JSON")
	}
}

func TestNewLoanOverdueMessage(t *testing.T) {
	msg := NewLoanOverdueMessage(5, 3, "wanjiku", 7000000, 14, "2025-06-01")

	if msg.LoanID != 5 || msg.MemberID != 3 {
		t.Errorf("ids = %d/%d, want 5/3", msg.LoanID, msg.MemberID)
	}
	if msg.MemberName != "wanjiku" {
		t.Errorf("MemberName = %v, want wanjiku", msg.MemberName)
	}
	if msg.OutstandingCents != 7000000 {
		t.Errorf("OutstandingCents = %v, want 7000000", msg.OutstandingCents)
	}
	if msg.DaysOverdue != 14 {
		t.Errorf("DaysOverdue = %v, want 14", msg.DaysOverdue)
	}
	if msg.EventID == "" {
		t.Error("EventID should not be empty")
	}
}

func TestLoanOverdueMessage_JSON(t *testing.T) {
	msg := NewLoanOverdueMessage(5, 3, "wanjiku", 7000000, 14, "2025-06-01")

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := LoanOverdueMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("LoanOverdueMessageFromJSON() error = %v", err)
	}
	if parsed.LoanID != msg.LoanID || parsed.DaysOverdue != msg.DaysOverdue || parsed.DueDate != msg.DueDate {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}
