package proposals

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyDocument = `{
    "1180000000000000001": {
        "index": "123",
        "status": "awaiting decision",
        "context": "Please reconsider the budget",
        "approved": 1,
        "rejected": 0,
        "signatories": [
            {
                "4242": {
                    "username": "alice",
                    "decision": "✅"
                }
            }
        ],
        "created_on": "2024-05-01T10:00:00.123456",
        "updated_on": "2024-05-01T10:05:00",
        "created_by_usr": "bob",
        "created_by_uid": 777000000000000001
    }
}`

var emojiCodec = Codec{ApproveToken: "✅", RejectToken: "❌"}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "feedback.json"), WithCodec(emojiCodec), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return store
}

func TestFileStoreCreateAndGet(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newOpenRecord("100")))

	rec, err := store.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "42", rec.Index)
	assert.Equal(t, StatusAwaitingDecision, rec.Status)
	assert.Equal(t, "777", rec.CreatedByUserID)
	assert.True(t, rec.CreatedOn.Equal(testNow))
}

func TestFileStoreCreateRefusesOverwrite(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newOpenRecord("100")))
	dup := newOpenRecord("100")
	dup.Context = "other"
	assert.ErrorIs(t, store.Create(ctx, dup), ErrAlreadyExists)

	rec, err := store.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "fund the thing", rec.Context)
}

func TestFileStoreMissingRecord(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Update(ctx, "nope", Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.AddSignatory(ctx, "nope", Signatory{VoterID: "1", Decision: DecisionApprove}), ErrNotFound)
	_, err = store.ListSignatoryIDs(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr), "lookups must not create the document")
}

func TestFileStoreUpdateAndAddSignatory(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newOpenRecord("100")))

	approved := 1
	rec, err := store.Update(ctx, "100", Patch{Approved: &approved})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Approved)

	require.NoError(t, store.AddSignatory(ctx, "100", Signatory{VoterID: "9", Username: "nine", Decision: DecisionApprove}))
	assert.ErrorIs(t, store.AddSignatory(ctx, "100", Signatory{VoterID: "9", Username: "nine", Decision: DecisionReject}), ErrDuplicateVote)

	ids, err := store.ListSignatoryIDs(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, ids)

	final := StatusApproved
	_, err = store.Update(ctx, "100", Patch{Status: &final})
	require.NoError(t, err)

	back := StatusAwaitingDecision
	_, err = store.Update(ctx, "100", Patch{Status: &back})
	assert.ErrorIs(t, err, ErrAlreadyFinal)
	assert.ErrorIs(t, store.AddSignatory(ctx, "100", Signatory{VoterID: "10", Decision: DecisionApprove}), ErrAlreadyFinal)
}

func TestFileStoreMutateKeepsCountsInLine(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newOpenRecord("100")))

	_, err := store.Mutate(ctx, "100", func(rec *Record) (bool, error) {
		rec.Approved = 5
		return true, nil
	})
	assert.ErrorIs(t, err, ErrInvariant)

	rec, err := store.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Approved)
}

func TestFileStoreMutateWithoutChangeDoesNotWrite(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	_, err := store.Mutate(ctx, "100", func(rec *Record) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Create(ctx, newOpenRecord("100")))
	info, err := os.Stat(store.Path())
	require.NoError(t, err)

	_, err = store.Mutate(ctx, "100", func(rec *Record) (bool, error) { return false, nil })
	require.NoError(t, err)
	after, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestFileStoreReadsLegacyDocument(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(legacyDocument), 0o644))
	ctx := context.Background()

	rec, err := store.Get(ctx, "1180000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "123", rec.Index)
	assert.Equal(t, "777000000000000001", rec.CreatedByUserID)
	require.Len(t, rec.Signatories, 1)
	assert.Equal(t, Signatory{VoterID: "4242", Username: "alice", Decision: DecisionApprove}, rec.Signatories[0])
	assert.Equal(t, 123456000, rec.CreatedOn.Nanosecond())

	// Writing back keeps the original shape.
	require.NoError(t, store.AddSignatory(ctx, "1180000000000000001", Signatory{VoterID: "5", Username: "eve", Decision: DecisionReject}))
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `"created_by_uid": 777000000000000001`)
	assert.Contains(t, text, `"created_on": "2024-05-01T10:00:00.123456"`)
	assert.Contains(t, text, `"decision": "❌"`)
	assert.Contains(t, text, `"status": "awaiting decision"`)
}

func TestFileStoreMalformedDocumentIsEmpty(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))
	ctx := context.Background()

	_, err := store.Get(ctx, "100")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Create(ctx, newOpenRecord("100")))
	rec, err := store.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "42", rec.Index)

	matches, err := filepath.Glob(store.Path() + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	kept, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))
}

func TestFileStoreListIsOrdered(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	for i, id := range []string{"300", "100", "200"} {
		rec := newOpenRecord(id)
		rec.CreatedOn = testNow.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(ctx, rec))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, rec := range list {
		ids = append(ids, rec.MessageID)
	}
	assert.Equal(t, []string{"300", "100", "200"}, ids)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newOpenRecord("100")))
	require.NoError(t, store.Create(ctx, newOpenRecord("200")))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestFileStoreHonoursCancelledContext(t *testing.T) {
	store := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Create(ctx, newOpenRecord("100")), context.Canceled)
}

func TestFileStoreKeepsRecordsWhenTokensChange(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t, 3)
	submit(t, ctrl, "1")
	submit(t, ctrl, "2")
	vote(t, ctrl, "1", "a", DecisionApprove)

	thumbs := Codec{ApproveToken: "👍", RejectToken: "❌"}
	reopened, err := NewFileStore(store.Path(), WithCodec(thumbs), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	ctrl2, err := NewController(reopened, Tally{Threshold: 3})
	require.NoError(t, err)

	res, err := ctrl2.ProcessVote(ctx, Vote{MessageID: "2", VoterID: "b", Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncremented, res.Outcome.Kind)

	res, err = ctrl2.ProcessVote(ctx, Vote{MessageID: "1", VoterID: "c", Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncremented, res.Outcome.Kind)
	assert.Equal(t, 2, res.Record.Approved)

	_, err = ctrl2.Submit(ctx, Submission{MessageID: "3", ReferendumIndex: "5", Context: "new"})
	require.NoError(t, err)

	list, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	matches, err := filepath.Glob(store.Path() + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The old token is written back untouched.
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"decision": "✅"`)
	assert.Contains(t, string(raw), `"decision": "👍"`)

	rec, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.Len(t, rec.Signatories, 2)
	assert.Equal(t, DecisionApprove, rec.Signatories[0].Decision)
	assert.Equal(t, Decision(0), rec.Signatories[1].Decision)
	assert.Equal(t, "👍", rec.Signatories[1].Token)
}

func TestFileStoreInvalidRecordIsAStorageError(t *testing.T) {
	store := newTestFileStore(t)
	const doc = `{"1": {"status": "maybe"}}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o644))
	ctx := context.Background()

	_, err := store.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.ErrorIs(t, store.Create(ctx, newOpenRecord("100")), ErrStorage)

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw))
	matches, err := filepath.Glob(store.Path() + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
