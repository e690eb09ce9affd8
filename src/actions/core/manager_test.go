package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name    string
	failing bool
	events  *[]string
}

func (f *fakeModule) Name() string { return f.name }

func (f *fakeModule) Start(context.Context) error {
	if f.failing {
		return errors.New("boom")
	}
	*f.events = append(*f.events, "start "+f.name)
	return nil
}

func (f *fakeModule) Stop(context.Context) {
	*f.events = append(*f.events, "stop "+f.name)
}

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager(&fakeModule{name: "a", events: &events}, nil, &fakeModule{name: "b", events: &events})
	assert.Equal(t, []string{"a", "b"}, m.Names())

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx))
	assert.Error(t, m.Add(&fakeModule{name: "late", events: &events}))

	m.Stop(ctx)
	m.Stop(ctx)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestManagerRollsBackOnFailure(t *testing.T) {
	var events []string
	m := NewManager(&fakeModule{name: "a", events: &events})
	require.NoError(t, m.Add(&fakeModule{name: "bad", failing: true, events: &events}))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"start a", "stop a"}, events)

	// A failed start leaves the manager startable again.
	m.Stop(context.Background())
	assert.Equal(t, []string{"start a", "stop a"}, events)
}
