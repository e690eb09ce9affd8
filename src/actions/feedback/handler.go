package feedback

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/govcomms-feedback/src/config"
	shareddiscord "github.com/stake-plus/govcomms-feedback/src/discord"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

const (
	replySubmitted   = "Your feedback has been submitted!"
	replyNotRecorded = "Your feedback was posted but could not be recorded. Please tell an administrator."
)

// chatSession is the part of *discordgo.Session the handler talks to.
type chatSession interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

var _ chatSession = (*discordgo.Session)(nil)

// Handler turns discord interactions and reactions into controller calls.
type Handler struct {
	Config     *config.FeedbackConfig
	Controller *proposals.Controller
	Tracker    *ThreadTracker
	Emojis     shareddiscord.Emojis
	Sanitizer  *bluemonday.Policy
	Now        func() time.Time

	mu    sync.RWMutex
	botID string
}

func NewHandler(cfg *config.FeedbackConfig, ctrl *proposals.Controller, tracker *ThreadTracker) *Handler {
	return &Handler{
		Config:     cfg,
		Controller: ctrl,
		Tracker:    tracker,
		Emojis:     shareddiscord.Emojis{Approve: cfg.ApprovalEmoji, Reject: cfg.RejectionEmoji},
		Sanitizer:  bluemonday.StrictPolicy(),
		Now:        time.Now,
	}
}

// SetBotID records the bot's own user so its reactions are not counted.
func (h *Handler) SetBotID(id string) {
	h.mu.Lock()
	h.botID = id
	h.mu.Unlock()
}

func (h *Handler) isSelf(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.botID != "" && h.botID == userID
}

// HandleSlash answers /post-feedback with the feedback form.
func (h *Handler) HandleSlash(s chatSession, i *discordgo.InteractionCreate) {
	if !shareddiscord.MemberHasRole(i.Member, h.Config.SignatoryRoleID) {
		h.replyMissingRole(s, i)
		return
	}
	if err := s.InteractionRespond(i.Interaction, shareddiscord.FeedbackModal()); err != nil {
		log.Printf("feedback: failed to open form: %v", err)
	}
}

// HandleModal posts a submitted form and starts tracking it.
func (h *Handler) HandleModal(ctx context.Context, s chatSession, i *discordgo.InteractionCreate) {
	if !shareddiscord.MemberHasRole(i.Member, h.Config.SignatoryRoleID) {
		h.replyMissingRole(s, i)
		return
	}

	form, err := shareddiscord.ParseFeedbackForm(i.ModalSubmitData())
	if err != nil {
		h.replyEphemeral(s, i, "Invalid feedback: "+err.Error()+".")
		return
	}
	text := h.sanitize(form.Context)
	if text == "" {
		h.replyEphemeral(s, i, "Invalid feedback: context is empty once formatting is removed.")
		return
	}

	embed := shareddiscord.FeedbackEmbed(form.Referendum, text, h.Config.Threshold, h.Emojis, h.Now())
	msg, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Content:         shareddiscord.RoleMention(h.Config.SignatoryRoleID),
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{Roles: []string{h.Config.SignatoryRoleID}},
	})
	if err != nil {
		log.Printf("feedback: failed to post feedback for referendum %s: %v", form.Referendum, err)
		h.replyEphemeral(s, i, "Failed to post feedback. Please try again later.")
		return
	}

	for _, emoji := range []string{h.Emojis.Approve, h.Emojis.Reject} {
		if err := s.MessageReactionAdd(i.ChannelID, msg.ID, emoji); err != nil {
			log.Printf("feedback: failed to add %s to %s: %v", emoji, msg.ID, err)
		}
	}

	user := interactionUser(i)
	sub := proposals.Submission{
		MessageID:       msg.ID,
		ReferendumIndex: form.Referendum,
		Context:         text,
	}
	if user != nil {
		sub.SubmitterUsername = user.Username
		sub.SubmitterID = user.ID
	}
	if _, err := h.Controller.Submit(ctx, sub); err != nil {
		log.Printf("feedback: failed to record %s: %v", msg.ID, err)
		h.replyEphemeral(s, i, replyNotRecorded)
		return
	}
	h.replyEphemeral(s, i, replySubmitted)
}

// HandleReaction counts a signatory's reaction on a tracked proposal.
func (h *Handler) HandleReaction(ctx context.Context, s chatSession, r *discordgo.MessageReactionAdd) {
	if r == nil || r.MessageReaction == nil || h.isSelf(r.UserID) {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}

	decision, ok := h.Emojis.Decision(&r.Emoji)
	if !ok {
		return
	}

	tracked, err := h.Tracker.Resolve(r.ChannelID, s.Channel)
	if err != nil {
		log.Printf("feedback: cannot resolve channel %s: %v", r.ChannelID, err)
		return
	}
	if !tracked {
		return
	}

	member := r.Member
	if member == nil {
		if member, err = s.GuildMember(r.GuildID, r.UserID); err != nil {
			log.Printf("feedback: cannot load member %s: %v", r.UserID, err)
			return
		}
	}
	if !shareddiscord.MemberHasRole(member, h.Config.SignatoryRoleID) {
		return
	}

	res, err := h.Controller.ProcessVote(ctx, proposals.Vote{
		MessageID:     r.MessageID,
		VoterID:       r.UserID,
		VoterUsername:    memberUsername(member, r.UserID),
		VoterDisplayName: memberDisplayName(member),
		Decision:         decision,
	})
	if err != nil {
		log.Printf("feedback: %v", err)
		return
	}
	if res.Ignored() {
		return
	}
	h.render(s, r.ChannelID, res)
}

func (h *Handler) render(s chatSession, channelID string, res *proposals.VoteResult) {
	u := res.Update
	base, err := h.currentEmbed(s, channelID, res.Record)
	if err != nil {
		log.Printf("feedback: cannot load message %s: %v", u.MessageID, err)
		return
	}
	if _, err := s.ChannelMessageEditEmbed(channelID, u.MessageID, shareddiscord.ApplyDisplay(base, u, h.Emojis)); err != nil {
		log.Printf("feedback: failed to update message %s: %v", u.MessageID, err)
	}
	if u.Announcement != "" {
		if _, err := s.ChannelMessageSend(channelID, u.Announcement); err != nil {
			log.Printf("feedback: failed to announce %s: %v", u.MessageID, err)
		}
	}
}

// currentEmbed returns the embed on the message, rebuilding it from the
// record when the message no longer carries one.
func (h *Handler) currentEmbed(s chatSession, channelID string, rec *proposals.Record) (*discordgo.MessageEmbed, error) {
	msg, err := s.ChannelMessage(channelID, rec.MessageID)
	if err != nil {
		return nil, err
	}
	if len(msg.Embeds) > 0 && msg.Embeds[0] != nil {
		return msg.Embeds[0], nil
	}
	return shareddiscord.FeedbackEmbed(rec.Index, rec.Context, h.Config.Threshold, h.Emojis, rec.CreatedOn), nil
}

func (h *Handler) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(h.Sanitizer.Sanitize(text)))
}

func (h *Handler) replyMissingRole(s chatSession, i *discordgo.InteractionCreate) {
	h.replyEphemeral(s, i, fmt.Sprintf("You are required to have %s to be able to submit feedback!",
		shareddiscord.RoleMention(h.Config.SignatoryRoleID)))
}

func (h *Handler) replyEphemeral(s chatSession, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("feedback: failed to reply to interaction: %v", err)
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// memberDisplayName follows Discord's own order: guild nick, then global
// name, then username.
func memberDisplayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func memberUsername(m *discordgo.Member, fallback string) string {
	if m != nil && m.User != nil && m.User.Username != "" {
		return m.User.Username
	}
	return fallback
}
