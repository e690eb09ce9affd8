package proposals

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore keeps every record in one JSON document on disk. Each write
// re-reads the document, replaces one entry and swaps the whole file in with a
// rename, so readers never see a half-written file.
type FileStore struct {
	path  string
	codec Codec
	now   func() time.Time
	keys  *keyedMutex
	// docMu covers the re-read/replace/write step only.
	docMu sync.Mutex
}

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	codec Codec
	now   func() time.Time
}

// WithCodec sets the decision tokens used in the persisted document.
func WithCodec(c Codec) Option {
	return func(o *storeOptions) { o.codec = c }
}

// WithClock overrides the time source used for updated_on stamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{codec: DefaultCodec, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFileStore opens (or prepares) the document at path.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("proposals: store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", ErrStorage, err)
	}
	o := buildOptions(opts)
	return &FileStore{
		path:  path,
		codec: o.codec,
		now:   o.now,
		keys:  newKeyedMutex(),
	}, nil
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Close is a no-op; the document is written through on every change.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.MessageID == "" {
		return fmt.Errorf("proposals: record with message id is required")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	unlock := s.keys.Lock(rec.MessageID)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.persist(rec.Clone(), true)
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, _, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	rec, ok := doc[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	return s.mutate(ctx, id, patchFunc(patch, s.now), false)
}

func (s *FileStore) AddSignatory(ctx context.Context, id string, sig Signatory) error {
	_, err := s.mutate(ctx, id, signatoryFunc(sig, s.now), false)
	return err
}

func (s *FileStore) ListSignatoryIDs(ctx context.Context, id string) ([]string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.SignatoryIDs(), nil
}

func (s *FileStore) Mutate(ctx context.Context, id string, fn MutateFunc) (*Record, error) {
	return s.mutate(ctx, id, fn, true)
}

func (s *FileStore) mutate(ctx context.Context, id string, fn MutateFunc, strict bool) (*Record, error) {
	unlock := s.keys.Lock(id)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, changed, err := mutateLocked(rec, fn, strict)
	if err != nil {
		return nil, err
	}
	if !changed {
		return rec, nil
	}
	if err := s.persist(next, false); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *FileStore) List(ctx context.Context) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, _, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	return sortRecords(doc), nil
}

// persist writes rec into a freshly read document. The caller holds rec's key
// lock, so only other entries can have moved since rec was loaded.
func (s *FileStore) persist(rec *Record, create bool) error {
	s.docMu.Lock()
	defer s.docMu.Unlock()

	doc, malformed, err := s.readDocument()
	if err != nil {
		return err
	}
	if create {
		if _, exists := doc[rec.MessageID]; exists {
			return ErrAlreadyExists
		}
	}
	if malformed {
		s.quarantine()
	}
	doc[rec.MessageID] = rec
	return s.writeDocument(doc)
}

// readDocument loads the document. A missing file is empty; a file that is not
// valid JSON is also treated as empty and reported as malformed so the next
// write can set it aside first. Valid JSON holding a record that cannot be
// interpreted is a storage error and the file is left alone.
func (s *FileStore) readDocument() (map[string]*Record, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]*Record), false, nil
		}
		return nil, false, fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
	}
	doc, err := s.codec.UnmarshalDocument(data)
	if errors.Is(err, ErrInvalidRecord) {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrStorage, s.path, err)
	}
	if err != nil {
		log.Printf("proposals: %s is unreadable, treating as empty: %v", s.path, err)
		return make(map[string]*Record), true, nil
	}
	return doc, false, nil
}

func (s *FileStore) writeDocument(doc map[string]*Record) error {
	data, err := s.codec.MarshalDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %v", ErrStorage, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %v", ErrStorage, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %v", ErrStorage, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod %s: %v", ErrStorage, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %v", ErrStorage, s.path, err)
	}
	return nil
}

// quarantine copies an undecodable document aside before it is overwritten.
func (s *FileStore) quarantine() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		log.Printf("proposals: failed to keep copy of malformed %s: %v", s.path, err)
		return
	}
	log.Printf("proposals: malformed %s copied to %s", s.path, dst)
}

func sortRecords(doc map[string]*Record) []*Record {
	out := make([]*Record, 0, len(doc))
	for _, rec := range doc {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out
}
