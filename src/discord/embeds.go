package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

const (
	fieldSignatories = "signatories"
	// Discord refuses empty field values.
	emptyFieldValue = "\u200b"

	colorPending  = 0xF39C12
	colorApproved = 0x2ECC71
	colorRejected = 0xE74C3C
)

// Emojis are the two voting reactions.
type Emojis struct {
	Approve string
	Reject  string
}

// For returns the reaction that casts d.
func (e Emojis) For(d proposals.Decision) string {
	if d == proposals.DecisionReject {
		return e.Reject
	}
	return e.Approve
}

// Decision maps a reaction back to a vote. Unknown reactions report false.
func (e Emojis) Decision(emoji *discordgo.Emoji) (proposals.Decision, bool) {
	if emoji == nil {
		return 0, false
	}
	for _, name := range []string{emoji.Name, emoji.APIName(), emoji.MessageFormat()} {
		switch name {
		case "":
		case e.Approve:
			return proposals.DecisionApprove, true
		case e.Reject:
			return proposals.DecisionReject, true
		}
	}
	return 0, false
}

// Announcer words threshold announcements with the configured emojis.
func (e Emojis) Announcer() proposals.Announcer {
	return func(d proposals.Decision, threshold int) string {
		if d == proposals.DecisionReject {
			return fmt.Sprintf("This message has been rejected with %d %s votes!", threshold, e.Reject)
		}
		return fmt.Sprintf("The message has reached the threshold of %d %s votes!", threshold, e.Approve)
	}
}

// FeedbackEmbed builds the embed for a freshly submitted proposal.
func FeedbackEmbed(index, context string, threshold int, emojis Emojis, at time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       proposals.TitlePending,
		Description: context,
		Color:       colorPending,
		Timestamp:   at.UTC().Format(time.RFC3339),
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Referendum #" + index,
			URL:  ReferendumURL(index),
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d reactions are required to either approve or reject the request", threshold),
		},
	}
	embed.Fields = tallyFields(0, 0, nil, emojis)
	return embed
}

// ApplyDisplay rewrites embed to show u. Description, author, footer and
// timestamp are left as they were.
func ApplyDisplay(embed *discordgo.MessageEmbed, u *proposals.DisplayUpdate, emojis Emojis) *discordgo.MessageEmbed {
	out := *embed
	out.Title = u.Title
	out.Fields = tallyFields(u.Approved, u.Rejected, u.Signatories, emojis)
	switch u.Status {
	case proposals.StatusApproved:
		out.Color = colorApproved
	case proposals.StatusRejected:
		out.Color = colorRejected
	default:
		out.Color = colorPending
	}
	return &out
}

func tallyFields(approved, rejected int, lines []proposals.SignatoryLine, emojis Emojis) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		{Name: emojis.Approve, Value: strconv.Itoa(approved), Inline: true},
		{Name: emojis.Reject, Value: strconv.Itoa(rejected), Inline: true},
		{Name: fieldSignatories, Value: SignatoryList(lines, emojis), Inline: false},
	}
}

// SignatoryList renders one "name emoji" line per signatory in voting order.
// Entries stored under a reaction that is no longer configured keep their
// original token.
func SignatoryList(lines []proposals.SignatoryLine, emojis Emojis) string {
	if len(lines) == 0 {
		return emptyFieldValue
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Name)
		b.WriteByte(' ')
		if l.Decision.Valid() {
			b.WriteString(emojis.For(l.Decision))
		} else {
			b.WriteString(l.Token)
		}
	}
	return b.String()
}
