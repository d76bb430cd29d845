package domain

// Decision is the terminal outcome of an attendance integrity evaluation.
type Decision string

const (
	// DecisionAccepted means every check passed; the attempt is recorded as-is.
	DecisionAccepted Decision = "ACCEPTED"
	// DecisionReview means the attempt is recorded but flagged for a human.
	DecisionReview Decision = "REVIEW"
	// DecisionRejected means the attempt is refused and not recorded.
	DecisionRejected Decision = "REJECTED"
)

// IsValid checks if the decision is one of the supported enum values.
func (d Decision) IsValid() bool {
	return d == DecisionAccepted || d == DecisionReview || d == DecisionRejected
}

// Persistable reports whether a verdict with this decision is written to the
// attendance store. Rejected attempts are audited but never persisted.
func (d Decision) Persistable() bool {
	return d == DecisionAccepted || d == DecisionReview
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}
