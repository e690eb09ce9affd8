package proposals

import (
	"fmt"
	"time"
)

// OutcomeKind classifies the result of a single vote.
type OutcomeKind int

const (
	// OutcomeRejected means the vote was refused and nothing changes.
	OutcomeRejected OutcomeKind = iota
	// OutcomeIncremented means the vote was counted and the record stays open.
	OutcomeIncremented
	// OutcomeTerminal means the vote was counted and closed the record.
	OutcomeTerminal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIncremented:
		return "incremented"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "rejected"
	}
}

// Outcome is the Tally's decision for one vote.
type Outcome struct {
	Kind     OutcomeKind
	Decision Decision
	// Count is the new counter value for Decision when the vote is accepted.
	Count int
	// Reason is set for OutcomeRejected: ErrAlreadyFinal, ErrDuplicateVote or ErrNotFound.
	Reason error
}

// Accepted reports whether the vote changes the record.
func (o Outcome) Accepted() bool {
	return o.Kind == OutcomeIncremented || o.Kind == OutcomeTerminal
}

// Tally holds the approve/reject threshold, shared by both decisions.
type Tally struct {
	Threshold int
}

// NewTally validates the threshold.
func NewTally(threshold int) (Tally, error) {
	if threshold <= 0 {
		return Tally{}, fmt.Errorf("proposals: threshold must be positive, got %d", threshold)
	}
	return Tally{Threshold: threshold}, nil
}

// Decide computes the next state for a vote without touching the record.
// Role membership is checked by the caller.
func (t Tally) Decide(rec *Record, voterID string, decision Decision) Outcome {
	if rec.Status != StatusAwaitingDecision {
		return Outcome{Kind: OutcomeRejected, Decision: decision, Reason: ErrAlreadyFinal}
	}
	if rec.HasSigned(voterID) {
		return Outcome{Kind: OutcomeRejected, Decision: decision, Reason: ErrDuplicateVote}
	}

	count := rec.Count(decision) + 1
	if count >= t.Threshold {
		return Outcome{Kind: OutcomeTerminal, Decision: decision, Count: count}
	}
	return Outcome{Kind: OutcomeIncremented, Decision: decision, Count: count}
}

// Apply writes an accepted outcome into rec: the counter, the status on a
// terminal outcome and the signatory, all or nothing.
func (o Outcome) Apply(rec *Record, sig Signatory, now time.Time) error {
	if !o.Accepted() {
		return o.Reason
	}
	if sig.Decision != o.Decision {
		return fmt.Errorf("%w: signatory decision %v does not match outcome %v", ErrInvariant, sig.Decision, o.Decision)
	}

	next := rec.Clone()
	if err := next.appendSignatory(sig); err != nil {
		return err
	}
	switch o.Decision {
	case DecisionApprove:
		next.Approved = o.Count
	case DecisionReject:
		next.Rejected = o.Count
	default:
		return fmt.Errorf("%w: invalid decision %v", ErrInvariant, o.Decision)
	}
	if o.Kind == OutcomeTerminal {
		next.Status = o.Decision.terminalStatus()
	}
	next.UpdatedOn = now.UTC()

	*rec = *next
	return nil
}
