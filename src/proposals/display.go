package proposals

import "fmt"

const (
	TitlePending  = "Feedback Submitted (Pending approval)"
	TitleApproved = "Feedback Submitted (Approved)"
	TitleRejected = "Feedback Submitted (Rejected)"
)

// Announcer words the message posted when a record reaches its threshold.
type Announcer func(decision Decision, threshold int) string

// DefaultAnnouncer is used when the chat layer does not supply its own wording.
func DefaultAnnouncer(decision Decision, threshold int) string {
	if decision == DecisionReject {
		return fmt.Sprintf("This message has been rejected with %d reject votes!", threshold)
	}
	return fmt.Sprintf("The message has reached the threshold of %d approve votes!", threshold)
}

// SignatoryLine is one row of the rendered signatory list. Name is the
// voter's display name when known. Token is set for decisions persisted under
// a reaction that is no longer configured.
type SignatoryLine struct {
	Name     string
	Decision Decision
	Token    string
}

// DisplayUpdate tells the chat layer what the proposal message should show.
// It is built from the persisted record, so rendering it twice is harmless.
type DisplayUpdate struct {
	MessageID    string
	Index        string
	Status       Status
	Title        string
	TitleChanged bool
	Approved     int
	Rejected     int
	Signatories  []SignatoryLine
	// Announcement is non-empty only for the vote that closed the record.
	Announcement string
}

// TitleFor returns the embed title for a status.
func TitleFor(s Status) string {
	switch s {
	case StatusApproved:
		return TitleApproved
	case StatusRejected:
		return TitleRejected
	default:
		return TitlePending
	}
}

// NewDisplayUpdate renders rec as it is now.
func NewDisplayUpdate(rec *Record) *DisplayUpdate {
	lines := make([]SignatoryLine, 0, len(rec.Signatories))
	for _, s := range rec.Signatories {
		lines = append(lines, SignatoryLine{Name: s.Label(), Decision: s.Decision, Token: s.Token})
	}
	return &DisplayUpdate{
		MessageID:   rec.MessageID,
		Index:       rec.Index,
		Status:      rec.Status,
		Title:       TitleFor(rec.Status),
		Approved:    rec.Approved,
		Rejected:    rec.Rejected,
		Signatories: lines,
	}
}
