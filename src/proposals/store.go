package proposals

import (
	"context"
	"sync"
	"time"
)

// MutateFunc edits a record in place while the store holds its lock. It
// reports whether anything changed; unchanged records are not written back.
type MutateFunc func(rec *Record) (changed bool, err error)

// Store is durable keyed access to feedback records. Implementations
// serialize read-modify-write cycles per message id.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, patch Patch) (*Record, error)
	AddSignatory(ctx context.Context, id string, sig Signatory) error
	ListSignatoryIDs(ctx context.Context, id string) ([]string, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Close() error
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or
// waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// mutateLocked runs fn against a copy of rec and checks the result before it
// may be persisted. The vote ledger must never hold a voter twice. In strict
// mode a record that was consistent on load must also keep its counters in
// line with the ledger; legacy records with counter drift are only held to
// the ledger rule. Update and AddSignatory are the two halves of the legacy
// two-step write and run non-strict.
func mutateLocked(rec *Record, fn MutateFunc, strict bool) (*Record, bool, error) {
	consistent := strict && rec.Validate() == nil
	next := rec.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return rec, false, nil
	}
	next.MessageID = rec.MessageID
	if consistent {
		err = next.Validate()
	} else {
		err = next.validateLedger()
	}
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func patchFunc(patch Patch, now func() time.Time) MutateFunc {
	return func(rec *Record) (bool, error) {
		if err := patch.apply(rec); err != nil {
			return false, err
		}
		rec.UpdatedOn = now().UTC()
		return true, nil
	}
}

func signatoryFunc(sig Signatory, now func() time.Time) MutateFunc {
	return func(rec *Record) (bool, error) {
		if rec.Status.Final() {
			return false, ErrAlreadyFinal
		}
		if err := rec.appendSignatory(sig); err != nil {
			return false, err
		}
		rec.UpdatedOn = now().UTC()
		return true, nil
	}
}
