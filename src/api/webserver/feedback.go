package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

type Feedback struct {
	store proposals.Store
}

func NewFeedback(store proposals.Store) Feedback {
	return Feedback{store: store}
}

type signatoryView struct {
	VoterID     string `json:"voter_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Decision    string `json:"decision"`
}

type recordView struct {
	MessageID   string          `json:"message_id"`
	Index       string          `json:"index"`
	Status      string          `json:"status"`
	Context     string          `json:"context"`
	Approved    int             `json:"approved"`
	Rejected    int             `json:"rejected"`
	Signatories []signatoryView `json:"signatories"`
	CreatedOn   time.Time       `json:"created_on"`
	UpdatedOn   time.Time       `json:"updated_on"`
	CreatedBy   string          `json:"created_by_usr"`
	CreatedByID string          `json:"created_by_uid"`
}

func newRecordView(r *proposals.Record) recordView {
	sigs := make([]signatoryView, 0, len(r.Signatories))
	for _, s := range r.Signatories {
		decision := s.Token
		if s.Decision.Valid() {
			decision = s.Decision.String()
		}
		sigs = append(sigs, signatoryView{VoterID: s.VoterID, Username: s.Username, DisplayName: s.DisplayName, Decision: decision})
	}
	return recordView{
		MessageID:   r.MessageID,
		Index:       r.Index,
		Status:      string(r.Status),
		Context:     r.Context,
		Approved:    r.Approved,
		Rejected:    r.Rejected,
		Signatories: sigs,
		CreatedOn:   r.CreatedOn.UTC(),
		UpdatedOn:   r.UpdatedOn.UTC(),
		CreatedBy:   r.CreatedByUsername,
		CreatedByID: r.CreatedByUserID,
	}
}

func (f Feedback) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (f Feedback) List(c *gin.Context) {
	records, err := f.store.List(c.Request.Context())
	if err != nil {
		log.Printf("api: list feedback: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to load feedback"})
		return
	}
	views := make([]recordView, 0, len(records))
	for _, r := range records {
		views = append(views, newRecordView(r))
	}
	c.JSON(http.StatusOK, gin.H{"feedback": views, "count": len(views)})
}

// Get serves one record with an ETag over the body.
func (f Feedback) Get(c *gin.Context) {
	rec, err := f.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, proposals.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "feedback not found"})
		return
	}
	if err != nil {
		log.Printf("api: get feedback %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to load feedback"})
		return
	}

	body, err := json.Marshal(newRecordView(rec))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to encode feedback"})
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
