package actions

import (
	"context"
	"fmt"
	"log"

	"github.com/stake-plus/govcomms-feedback/src/actions/core"
	feedbackmodule "github.com/stake-plus/govcomms-feedback/src/actions/feedback"
	"github.com/stake-plus/govcomms-feedback/src/api/webserver"
	"github.com/stake-plus/govcomms-feedback/src/config"
	"github.com/stake-plus/govcomms-feedback/src/data"
	shareddiscord "github.com/stake-plus/govcomms-feedback/src/discord"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

// OpenStore builds the configured record store backend.
func OpenStore(ctx context.Context, cfg *config.FeedbackConfig) (proposals.Store, error) {
	codec := proposals.Codec{ApproveToken: cfg.ApprovalEmoji, RejectToken: cfg.RejectionEmoji}
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := data.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("actions: open redis store: %w", err)
		}
		log.Printf("actions: using redis store %s", cfg.RedisPrefix)
		return proposals.NewRedisStore(client, cfg.RedisPrefix, proposals.WithCodec(codec)), nil
	case config.BackendFile, "":
		store, err := proposals.NewFileStore(cfg.StorePath, proposals.WithCodec(codec))
		if err != nil {
			return nil, fmt.Errorf("actions: open file store: %w", err)
		}
		log.Printf("actions: using file store %s", store.Path())
		return store, nil
	default:
		return nil, fmt.Errorf("actions: unknown store backend %q", cfg.StoreBackend)
	}
}

// NewController wires the tally and the emoji-aware announcer onto store.
func NewController(cfg *config.FeedbackConfig, store proposals.Store) (*proposals.Controller, error) {
	tally, err := proposals.NewTally(cfg.Threshold)
	if err != nil {
		return nil, err
	}
	emojis := shareddiscord.Emojis{Approve: cfg.ApprovalEmoji, Reject: cfg.RejectionEmoji}
	return proposals.NewController(store, tally, proposals.WithAnnouncer(emojis.Announcer()))
}

// StartAll wires up the enabled modules and starts the manager.
func StartAll(ctx context.Context, cfg *config.FeedbackConfig, apiCfg config.APIConfig, store proposals.Store) (*core.Manager, error) {
	ctrl, err := NewController(cfg, store)
	if err != nil {
		return nil, fmt.Errorf("actions: init controller: %w", err)
	}

	mgr := core.NewManager()

	mod, err := feedbackmodule.NewModule(cfg, ctrl)
	if err != nil {
		return nil, fmt.Errorf("actions: init feedback module: %w", err)
	}
	if err := mgr.Add(mod); err != nil {
		return nil, fmt.Errorf("actions: add feedback module: %w", err)
	}

	if apiCfg.Enabled {
		if err := mgr.Add(webserver.NewServer(apiCfg, store)); err != nil {
			return nil, fmt.Errorf("actions: add api module: %w", err)
		}
	} else {
		log.Printf("actions: feedback API disabled via configuration")
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
