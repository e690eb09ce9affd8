package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// FeedbackConfig holds the feedback bot configuration
type FeedbackConfig struct {
	Base
	ForumChannelID  string
	SignatoryRoleID string
	ApprovalEmoji   string
	RejectionEmoji  string
	Threshold       int
	StoreBackend    string
	StorePath       string
	RedisURL        string
	RedisPrefix     string
}

// LoadFeedbackConfig loads feedback bot configuration
func LoadFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		Base:            LoadBase(),
		ForumChannelID:  GetSetting("forum_channel_id", "FORUM_CHANNEL", ""),
		SignatoryRoleID: GetSetting("signatory_role_id", "SIGNATORY_ROLE", ""),
		ApprovalEmoji:   GetSetting("approval_emoji", "APPROVAL_EMOJI", "✅"),
		RejectionEmoji:  GetSetting("rejection_emoji", "REJECTION_EMOJI", "❌"),
		Threshold:       getIntSetting("reaction_threshold", "REACTION_THRESHOLD", 0),
		StoreBackend:    strings.ToLower(GetSetting("feedback_store_backend", "FEEDBACK_STORE_BACKEND", BackendFile)),
		StorePath:       GetSetting("feedback_store_path", "FEEDBACK_STORE_PATH", "feedback.json"),
		RedisURL:        GetSetting("redis_url", "REDIS_URL", ""),
		RedisPrefix:     GetSetting("redis_prefix", "REDIS_PREFIX", "govcomms:feedback"),
	}
}

// ValidateStore checks only what a store needs, for commands that never
// connect to discord.
func (c FeedbackConfig) ValidateStore() error {
	var errs []error
	switch c.StoreBackend {
	case BackendFile:
		if c.StorePath == "" {
			errs = append(errs, errors.New("FEEDBACK_STORE_PATH is empty"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown FEEDBACK_STORE_BACKEND %q", c.StoreBackend))
	}
	return errors.Join(errs...)
}

// Validate reports every missing or invalid value at once.
func (c FeedbackConfig) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("CLIENT_SECRET is not set"))
	}
	if c.GuildID == "" {
		errs = append(errs, errors.New("GUILD_ID is not set"))
	}
	if c.ForumChannelID == "" {
		errs = append(errs, errors.New("FORUM_CHANNEL is not set"))
	}
	if c.SignatoryRoleID == "" {
		errs = append(errs, errors.New("SIGNATORY_ROLE is not set"))
	}
	if c.Threshold <= 0 {
		errs = append(errs, errors.New("REACTION_THRESHOLD must be a positive integer"))
	}
	if c.ApprovalEmoji == "" || c.RejectionEmoji == "" || c.ApprovalEmoji == c.RejectionEmoji {
		errs = append(errs, errors.New("APPROVAL_EMOJI and REJECTION_EMOJI must be set and differ"))
	}
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
