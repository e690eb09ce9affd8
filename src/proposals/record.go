package proposals

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a feedback proposal.
type Status string

const (
	StatusAwaitingDecision Status = "awaiting decision"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

// Final reports whether the status is terminal.
func (s Status) Final() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus accepts the persisted status strings, ignoring case and padding.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusAwaitingDecision:
		return StatusAwaitingDecision, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Decision is the choice a signatory casts.
type Decision int

const (
	DecisionApprove Decision = iota + 1
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Valid reports whether d is one of the two known decisions.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// terminalStatus is the status a record moves to when d reaches the threshold.
func (d Decision) terminalStatus() Status {
	if d == DecisionReject {
		return StatusRejected
	}
	return StatusApproved
}

// Signatory is one entry of the vote ledger. DisplayName is what the chat
// shows for the voter and may be empty on older entries. Token keeps a
// persisted decision the current codec cannot map; such entries have a zero
// Decision and count towards neither side.
type Signatory struct {
	VoterID     string
	Username    string
	DisplayName string
	Decision    Decision
	Token       string
}

// Label is the name shown for the signatory.
func (s Signatory) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

// Record is a single feedback proposal keyed by the Discord message that carries it.
type Record struct {
	MessageID         string
	Index             string
	Context           string
	Status            Status
	Approved          int
	Rejected          int
	Signatories       []Signatory
	CreatedOn         time.Time
	UpdatedOn         time.Time
	CreatedByUsername string
	CreatedByUserID   string
}

// Clone returns a deep copy so callers never share the signatory slice with the store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Signatories = append([]Signatory(nil), r.Signatories...)
	return &out
}

// HasSigned reports whether voterID is already in the ledger.
func (r *Record) HasSigned(voterID string) bool {
	for _, s := range r.Signatories {
		if s.VoterID == voterID {
			return true
		}
	}
	return false
}

// SignatoryIDs returns the voter ids in ledger order.
func (r *Record) SignatoryIDs() []string {
	ids := make([]string, 0, len(r.Signatories))
	for _, s := range r.Signatories {
		ids = append(ids, s.VoterID)
	}
	return ids
}

// CountDecisions tallies the ledger.
func (r *Record) CountDecisions() (approved, rejected int) {
	for _, s := range r.Signatories {
		switch s.Decision {
		case DecisionApprove:
			approved++
		case DecisionReject:
			rejected++
		}
	}
	return approved, rejected
}

// Count returns the stored counter for d.
func (r *Record) Count(d Decision) int {
	if d == DecisionReject {
		return r.Rejected
	}
	return r.Approved
}

func (r *Record) appendSignatory(sig Signatory) error {
	if sig.VoterID == "" {
		return fmt.Errorf("%w: empty voter id", ErrInvariant)
	}
	if !sig.Decision.Valid() {
		return fmt.Errorf("%w: invalid decision %v", ErrInvariant, sig.Decision)
	}
	if r.HasSigned(sig.VoterID) {
		return ErrDuplicateVote
	}
	r.Signatories = append(r.Signatories, sig)
	return nil
}

// Validate checks the ledger invariants: one entry per voter and counters that
// match the ledger.
func (r *Record) Validate() error {
	if err := r.validateLedger(); err != nil {
		return err
	}
	approved, rejected := r.CountDecisions()
	if approved != r.Approved || rejected != r.Rejected {
		return fmt.Errorf("%w: counts %d/%d disagree with ledger %d/%d on %s",
			ErrInvariant, r.Approved, r.Rejected, approved, rejected, r.MessageID)
	}
	return nil
}

func (r *Record) validateLedger() error {
	seen := make(map[string]struct{}, len(r.Signatories))
	for _, s := range r.Signatories {
		if _, dup := seen[s.VoterID]; dup {
			return fmt.Errorf("%w: voter %s signed twice on %s", ErrInvariant, s.VoterID, r.MessageID)
		}
		seen[s.VoterID] = struct{}{}
	}
	return nil
}

// Patch is a narrow partial update. Nil fields are left untouched.
type Patch struct {
	Status   *Status
	Approved *int
	Rejected *int
}

// apply merges the patch, refusing changes that would reverse a terminal
// status or decrease a counter.
func (p Patch) apply(r *Record) error {
	if p.Status != nil && *p.Status != r.Status {
		if r.Status.Final() {
			return ErrAlreadyFinal
		}
		if !p.Status.Final() {
			return fmt.Errorf("%w: cannot move %s back to %q", ErrInvariant, r.MessageID, *p.Status)
		}
	}
	if r.Status.Final() && (p.Approved != nil && *p.Approved != r.Approved || p.Rejected != nil && *p.Rejected != r.Rejected) {
		return ErrAlreadyFinal
	}
	if p.Approved != nil && *p.Approved < r.Approved {
		return fmt.Errorf("%w: approved count cannot decrease", ErrInvariant)
	}
	if p.Rejected != nil && *p.Rejected < r.Rejected {
		return fmt.Errorf("%w: rejected count cannot decrease", ErrInvariant)
	}
	if p.Approved != nil {
		r.Approved = *p.Approved
	}
	if p.Rejected != nil {
		r.Rejected = *p.Rejected
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return nil
}
