package proposals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timestampLayout matches Python's datetime.isoformat() for naive UTC values,
// which is what existing feedback.json files contain.
const timestampLayout = "2006-01-02T15:04:05.000000"

// Codec translates records to and from the persisted JSON shape. Decisions are
// stored as the configured reaction tokens.
type Codec struct {
	ApproveToken string
	RejectToken  string
}

// DefaultCodec stores decisions as plain keywords.
var DefaultCodec = Codec{ApproveToken: "approve", RejectToken: "reject"}

type wireSignatory struct {
	Username    string `json:"username"`
	Decision    string `json:"decision"`
	DisplayName string `json:"display_name,omitempty"`
}

type wireRecord struct {
	Index        looseString                `json:"index"`
	Status       string                     `json:"status"`
	Context      string                     `json:"context"`
	Approved     int                        `json:"approved"`
	Rejected     int                        `json:"rejected"`
	Signatories  []map[string]wireSignatory `json:"signatories"`
	CreatedOn    string                     `json:"created_on"`
	UpdatedOn    string                     `json:"updated_on"`
	CreatedByUsr string                     `json:"created_by_usr"`
	CreatedByUID looseString                `json:"created_by_uid"`
}

// looseString decodes from either a JSON string or a JSON number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*s = looseString(n.String())
	return nil
}

// numericID writes Discord snowflakes as JSON numbers, matching the original
// files, an empty id as null and anything else as a string.
type numericID string

func (id numericID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type wireRecordOut struct {
	Index        string                     `json:"index"`
	Status       string                     `json:"status"`
	Context      string                     `json:"context"`
	Approved     int                        `json:"approved"`
	Rejected     int                        `json:"rejected"`
	Signatories  []map[string]wireSignatory `json:"signatories"`
	CreatedOn    string                     `json:"created_on"`
	UpdatedOn    string                     `json:"updated_on"`
	CreatedByUsr string                     `json:"created_by_usr"`
	CreatedByUID numericID                  `json:"created_by_uid"`
}

// Token returns the persisted token for d.
func (c Codec) Token(d Decision) string {
	if d == DecisionReject {
		return c.RejectToken
	}
	return c.ApproveToken
}

// ParseDecision maps a persisted token or keyword back to a Decision.
func (c Codec) ParseDecision(token string) (Decision, error) {
	t := strings.TrimSpace(token)
	switch {
	case t == "":
	case t == c.ApproveToken, strings.EqualFold(t, DecisionApprove.String()):
		return DecisionApprove, nil
	case t == c.RejectToken, strings.EqualFold(t, DecisionReject.String()):
		return DecisionReject, nil
	}
	return 0, fmt.Errorf("unknown decision token %q", token)
}

func (c Codec) encodeRecord(r *Record) wireRecordOut {
	sigs := make([]map[string]wireSignatory, 0, len(r.Signatories))
	for _, s := range r.Signatories {
		token := s.Token
		if s.Decision.Valid() {
			token = c.Token(s.Decision)
		}
		sigs = append(sigs, map[string]wireSignatory{
			s.VoterID: {Username: s.Username, Decision: token, DisplayName: s.DisplayName},
		})
	}
	return wireRecordOut{
		Index:        r.Index,
		Status:       string(r.Status),
		Context:      r.Context,
		Approved:     r.Approved,
		Rejected:     r.Rejected,
		Signatories:  sigs,
		CreatedOn:    formatTimestamp(r.CreatedOn),
		UpdatedOn:    formatTimestamp(r.UpdatedOn),
		CreatedByUsr: r.CreatedByUsername,
		CreatedByUID: numericID(r.CreatedByUserID),
	}
}

func (c Codec) decodeRecord(id string, w wireRecord) (*Record, error) {
	status, err := ParseStatus(w.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: %v", ErrInvalidRecord, id, err)
	}
	created, err := parseTimestamp(w.CreatedOn)
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: created_on: %v", ErrInvalidRecord, id, err)
	}
	updated, err := parseTimestamp(w.UpdatedOn)
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: updated_on: %v", ErrInvalidRecord, id, err)
	}

	rec := &Record{
		MessageID:         id,
		Index:             string(w.Index),
		Context:           w.Context,
		Status:            status,
		Approved:          w.Approved,
		Rejected:          w.Rejected,
		CreatedOn:         created,
		UpdatedOn:         updated,
		CreatedByUsername: w.CreatedByUsr,
		CreatedByUserID:   string(w.CreatedByUID),
	}
	for _, entry := range w.Signatories {
		voters := make([]string, 0, len(entry))
		for voter := range entry {
			voters = append(voters, voter)
		}
		sort.Strings(voters)
		for _, voter := range voters {
			ws := entry[voter]
			sig := Signatory{VoterID: voter, Username: ws.Username, DisplayName: ws.DisplayName}
			if decision, err := c.ParseDecision(ws.Decision); err == nil {
				sig.Decision = decision
			} else {
				sig.Token = ws.Decision
			}
			rec.Signatories = append(rec.Signatories, sig)
		}
	}
	return rec, nil
}

// MarshalRecord encodes a single record in the document entry shape.
func (c Codec) MarshalRecord(r *Record) ([]byte, error) {
	return json.Marshal(c.encodeRecord(r))
}

// UnmarshalRecord decodes a single document entry.
func (c Codec) UnmarshalRecord(id string, data []byte) (*Record, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: record %s: invalid JSON", ErrMalformedDocument, id)
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w: record %s: %v", ErrMalformedDocument, ErrInvalidRecord, id, err)
	}
	rec, err := c.decodeRecord(id, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return rec, nil
}

// MarshalDocument encodes the whole id → record mapping.
func (c Codec) MarshalDocument(doc map[string]*Record) ([]byte, error) {
	out := make(map[string]wireRecordOut, len(doc))
	for id, rec := range doc {
		out[id] = c.encodeRecord(rec)
	}
	return json.MarshalIndent(out, "", "    ")
}

// UnmarshalDocument decodes the whole mapping. Empty input is an empty document.
// Input that is not JSON at all fails with ErrMalformedDocument alone; JSON that
// does not describe valid records additionally carries ErrInvalidRecord.
func (c Codec) UnmarshalDocument(data []byte) (map[string]*Record, error) {
	doc := make(map[string]*Record)
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedDocument)
	}
	var raw map[string]wireRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrMalformedDocument, ErrInvalidRecord, err)
	}
	for id, w := range raw {
		rec, err := c.decodeRecord(id, w)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
		doc[id] = rec
	}
	return doc, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	// Fractional seconds are accepted after the seconds field even though the
	// layout omits them.
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
