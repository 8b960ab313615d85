package models

// Status is the reconciled lifecycle state of an intent phase.
type Status int

const (
	// StatusPending means no transaction hash is attached yet, or the
	// attached transaction has not been mined.
	StatusPending Status = iota
	// StatusFailed means mined evidence contradicts the intent.
	StatusFailed
	// StatusSuccess means mined evidence matches the intent on every check.
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusFailed:
		return "FAILED"
	case StatusSuccess:
		return "SUCCESS"
	}
	return "UNKNOWN"
}

// StatusPtr is a convenience for phase results where a nil *Status means
// "not applicable", which is distinct from StatusPending.
func StatusPtr(s Status) *Status {
	return &s
}
