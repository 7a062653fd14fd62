package core

// Well-known configuration parameter keys.
const (
	ParamShareValue   = "share_value"
	ParamPenaltyRate  = "penalty_rate"
	ParamInterestRate = "loan_interest_rate"
)

// Settings is an immutable snapshot of the group's numeric parameters,
// loaded from the config store and passed into batch-job calls so a
// run's behaviour is reproducible from the snapshot it saw.
type Settings struct {
	ShareValue   Money // monthly contribution per share
	PenaltyRate  Rate  // default late-payment penalty percentage
	InterestRate Rate  // default annual loan interest percentage
}

func (s Settings) Validate() error {
	if err := s.ShareValue.Validate(); err != nil {
		return err
	}
	if err := s.PenaltyRate.Validate(); err != nil {
		return err
	}
	return s.InterestRate.Validate()
}
