package actions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stake-plus/govcomms-feedback/src/config"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreFile(t *testing.T) {
	cfg := &config.FeedbackConfig{
		StoreBackend:   config.BackendFile,
		StorePath:      filepath.Join(t.TempDir(), "nested", "feedback.json"),
		ApprovalEmoji:  "✅",
		RejectionEmoji: "❌",
		Threshold:      2,
	}
	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &proposals.FileStore{}, store)

	ctrl, err := NewController(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, 2, ctrl.Threshold())
}

func TestOpenStoreRedis(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := &config.FeedbackConfig{
		StoreBackend: config.BackendRedis,
		RedisURL:     "redis://" + s.Addr(),
		RedisPrefix:  "gc:test",
	}
	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &proposals.RedisStore{}, store)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.FeedbackConfig{StoreBackend: "sqlite"})
	assert.Error(t, err)
}

func TestNewControllerRejectsBadThreshold(t *testing.T) {
	cfg := &config.FeedbackConfig{StoreBackend: config.BackendFile, StorePath: filepath.Join(t.TempDir(), "f.json")}
	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	_, err = NewController(cfg, store)
	assert.Error(t, err)
}
