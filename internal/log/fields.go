package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldActor         = "actor"
	FieldMemberID      = "member_id"
	FieldLoanID        = "loan_id"
	FieldTransactionID = "transaction_id"
	FieldAmountCents   = "amount_cents"
	FieldPeriod        = "period"
	FieldRunDate       = "run_date"
	FieldDaysOverdue   = "days_overdue"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentStorage = "storage"
	ComponentLedger  = "ledger"
	ComponentBatch   = "batch"
	ComponentReport  = "report"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpList       = "list"
	OpArchive    = "archive"
	OpDelete     = "delete"
	OpBatch      = "batch"
	OpDistribute = "distribute"
	OpScan       = "scan"
	OpPublish    = "publish"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithActor adds the audit actor field
func (f LogFields) WithActor(actor string) LogFields {
	f[FieldActor] = actor
	return f
}

// WithMember adds the member field
func (f LogFields) WithMember(memberID int64) LogFields {
	f[FieldMemberID] = memberID
	return f
}

// WithLoan adds the loan field
func (f LogFields) WithLoan(loanID int64) LogFields {
	f[FieldLoanID] = loanID
	return f
}

// WithAmount adds the amount field
func (f LogFields) WithAmount(cents int64) LogFields {
	f[FieldAmountCents] = cents
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
