package proposals

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Submission is what the feedback form hands over.
type Submission struct {
	MessageID         string
	ReferendumIndex   string
	Context           string
	SubmitterUsername string
	SubmitterID       string
}

// Vote is a reaction from a member the adapter already checked for the
// signatory role.
type Vote struct {
	MessageID        string
	VoterID          string
	VoterUsername    string
	VoterDisplayName string
	Decision         Decision
}

// VoteResult is what ProcessVote reports back to the chat layer.
type VoteResult struct {
	Outcome Outcome
	Record  *Record
	// Update is nil when the vote was ignored.
	Update *DisplayUpdate
}

// Ignored reports whether the vote left the record untouched.
func (r *VoteResult) Ignored() bool {
	return r == nil || !r.Outcome.Accepted()
}

// Controller runs submissions and votes against a Store.
type Controller struct {
	store    Store
	tally    Tally
	now      func() time.Time
	announce Announcer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerClock overrides the time source for created/updated stamps.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithAnnouncer sets how terminal announcements are worded.
func WithAnnouncer(a Announcer) ControllerOption {
	return func(c *Controller) { c.announce = a }
}

// NewController wires a store and a tally.
func NewController(store Store, tally Tally, opts ...ControllerOption) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("proposals: store is required")
	}
	if tally.Threshold <= 0 {
		return nil, fmt.Errorf("proposals: threshold must be positive, got %d", tally.Threshold)
	}
	c := &Controller{
		store:    store,
		tally:    tally,
		now:      time.Now,
		announce: DefaultAnnouncer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Threshold returns the configured vote threshold.
func (c *Controller) Threshold() int { return c.tally.Threshold }

// Submit records a new proposal awaiting decision.
func (c *Controller) Submit(ctx context.Context, sub Submission) (*Record, error) {
	if strings.TrimSpace(sub.MessageID) == "" {
		return nil, fmt.Errorf("proposals: message id is required")
	}
	if strings.TrimSpace(sub.ReferendumIndex) == "" {
		return nil, fmt.Errorf("proposals: referendum index is required")
	}
	if strings.TrimSpace(sub.Context) == "" {
		return nil, fmt.Errorf("proposals: context is required")
	}

	now := c.now().UTC()
	rec := &Record{
		MessageID:         sub.MessageID,
		Index:             strings.TrimSpace(sub.ReferendumIndex),
		Context:           sub.Context,
		Status:            StatusAwaitingDecision,
		CreatedOn:         now,
		UpdatedOn:         now,
		CreatedByUsername: sub.SubmitterUsername,
		CreatedByUserID:   sub.SubmitterID,
	}
	if err := c.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("submit %s: %w", sub.MessageID, err)
	}
	log.Printf("proposals: feedback %s recorded for referendum #%s by %s", rec.MessageID, rec.Index, rec.CreatedByUsername)
	return rec, nil
}

// Get loads a record.
func (c *Controller) Get(ctx context.Context, id string) (*Record, error) {
	return c.store.Get(ctx, id)
}

// ProcessVote runs load, decide and persist for one vote under the store's
// per-message lock. Votes on untracked messages, duplicate votes and votes on
// decided records are ignored rather than returned as errors.
func (c *Controller) ProcessVote(ctx context.Context, v Vote) (*VoteResult, error) {
	if !v.Decision.Valid() {
		return nil, fmt.Errorf("proposals: invalid decision %v", v.Decision)
	}
	if v.VoterID == "" {
		return nil, fmt.Errorf("proposals: voter id is required")
	}

	var outcome Outcome
	rec, err := c.store.Mutate(ctx, v.MessageID, func(rec *Record) (bool, error) {
		outcome = c.tally.Decide(rec, v.VoterID, v.Decision)
		if !outcome.Accepted() {
			return false, nil
		}
		sig := Signatory{VoterID: v.VoterID, Username: v.VoterUsername, DisplayName: v.VoterDisplayName, Decision: v.Decision}
		if err := outcome.Apply(rec, sig, c.now()); err != nil {
			return false, err
		}
		return true, nil
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return &VoteResult{Outcome: Outcome{Kind: OutcomeRejected, Decision: v.Decision, Reason: ErrNotFound}}, nil
	case err != nil:
		return nil, fmt.Errorf("vote on %s: %w", v.MessageID, err)
	}

	result := &VoteResult{Outcome: outcome, Record: rec}
	if !outcome.Accepted() {
		log.Printf("proposals: ignored %s vote from %s on %s: %v", v.Decision, v.VoterID, v.MessageID, outcome.Reason)
		return result, nil
	}
	result.Update = c.display(rec, outcome)
	if outcome.Kind == OutcomeTerminal {
		log.Printf("proposals: feedback %s %s with %d votes", rec.MessageID, rec.Status, outcome.Count)
	}
	return result, nil
}

// Display renders the current state of a record without a vote.
func (c *Controller) Display(rec *Record) *DisplayUpdate {
	return c.display(rec, Outcome{})
}

func (c *Controller) display(rec *Record, outcome Outcome) *DisplayUpdate {
	u := NewDisplayUpdate(rec)
	if outcome.Kind == OutcomeTerminal {
		u.TitleChanged = true
		if c.announce != nil {
			u.Announcement = c.announce(outcome.Decision, c.tally.Threshold)
		}
	}
	return u
}
