package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEmojis = Emojis{Approve: "✅", Reject: "❌"}

func modalSubmission(referendum, context string) discordgo.ModalSubmitInteractionData {
	return discordgo.ModalSubmitInteractionData{
		CustomID: FeedbackModalID,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "referendum", Value: referendum},
			}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "context", Value: context},
			}},
		},
	}
}

func TestParseFeedbackForm(t *testing.T) {
	form, err := ParseFeedbackForm(modalSubmission(" #123 ", "  please add milestones \n"))
	require.NoError(t, err)
	assert.Equal(t, FeedbackForm{Referendum: "123", Context: "please add milestones"}, form)

	_, err = ParseFeedbackForm(modalSubmission("12a", "ctx"))
	assert.Error(t, err)
	_, err = ParseFeedbackForm(modalSubmission("", "ctx"))
	assert.Error(t, err)
	_, err = ParseFeedbackForm(modalSubmission("5", "   "))
	assert.Error(t, err)
}

func TestFeedbackModalShape(t *testing.T) {
	resp := FeedbackModal()
	assert.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	assert.Equal(t, "Feedback Form", resp.Data.Title)
	require.Len(t, resp.Data.Components, 2)
	row := resp.Data.Components[1].(discordgo.ActionsRow)
	input := row.Components[0].(discordgo.TextInput)
	assert.Equal(t, "context", input.CustomID)
	assert.Equal(t, discordgo.TextInputParagraph, input.Style)
}

func TestFeedbackEmbed(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	embed := FeedbackEmbed("77", "context text", 3, testEmojis, at)

	assert.Equal(t, proposals.TitlePending, embed.Title)
	assert.Equal(t, "context text", embed.Description)
	assert.Equal(t, "Referendum #77", embed.Author.Name)
	assert.Equal(t, "https://polkadot.polkassembly.io/referenda/77", embed.Author.URL)
	assert.Equal(t, "3 reactions are required to either approve or reject the request", embed.Footer.Text)
	assert.Equal(t, "2024-05-01T10:00:00Z", embed.Timestamp)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "✅", embed.Fields[0].Name)
	assert.Equal(t, "0", embed.Fields[0].Value)
	assert.Equal(t, "❌", embed.Fields[1].Name)
	assert.Equal(t, "signatories", embed.Fields[2].Name)
	assert.NotEmpty(t, embed.Fields[2].Value)
}

func TestApplyDisplay(t *testing.T) {
	base := FeedbackEmbed("77", "ctx", 2, testEmojis, time.Now())
	u := &proposals.DisplayUpdate{
		Status:   proposals.StatusRejected,
		Title:    proposals.TitleRejected,
		Approved: 1,
		Rejected: 2,
		Signatories: []proposals.SignatoryLine{
			{Name: "alice", Decision: proposals.DecisionApprove},
			{Name: "bob", Decision: proposals.DecisionReject},
			{Name: "carol", Decision: proposals.DecisionReject},
			{Name: "dave", Token: "👍"},
		},
	}

	out := ApplyDisplay(base, u, testEmojis)
	assert.Equal(t, proposals.TitleRejected, out.Title)
	assert.Equal(t, "1", out.Fields[0].Value)
	assert.Equal(t, "2", out.Fields[1].Value)
	assert.Equal(t, "alice ✅\nbob ❌\ncarol ❌\ndave 👍", out.Fields[2].Value)
	assert.Equal(t, colorRejected, out.Color)
	assert.Equal(t, "ctx", out.Description)
	assert.Equal(t, proposals.TitlePending, base.Title, "input embed is not modified")

	again := ApplyDisplay(out, u, testEmojis)
	assert.Equal(t, out.Fields, again.Fields)
}

func TestEmojiDecision(t *testing.T) {
	d, ok := testEmojis.Decision(&discordgo.Emoji{Name: "✅"})
	require.True(t, ok)
	assert.Equal(t, proposals.DecisionApprove, d)

	d, ok = testEmojis.Decision(&discordgo.Emoji{Name: "❌"})
	require.True(t, ok)
	assert.Equal(t, proposals.DecisionReject, d)

	custom := Emojis{Approve: "yes:123", Reject: "no:456"}
	d, ok = custom.Decision(&discordgo.Emoji{ID: "456", Name: "no"})
	require.True(t, ok)
	assert.Equal(t, proposals.DecisionReject, d)

	_, ok = testEmojis.Decision(&discordgo.Emoji{Name: "👍"})
	assert.False(t, ok)
	_, ok = testEmojis.Decision(nil)
	assert.False(t, ok)
}

func TestAnnouncer(t *testing.T) {
	announce := testEmojis.Announcer()
	assert.Equal(t, "The message has reached the threshold of 3 ✅ votes!", announce(proposals.DecisionApprove, 3))
	assert.Equal(t, "This message has been rejected with 2 ❌ votes!", announce(proposals.DecisionReject, 2))
}

func TestMemberHasRole(t *testing.T) {
	member := &discordgo.Member{Roles: []string{"a", "b"}}
	assert.True(t, MemberHasRole(member, "b"))
	assert.False(t, MemberHasRole(member, "c"))
	assert.False(t, MemberHasRole(nil, "c"))
	assert.True(t, MemberHasRole(nil, ""))
	assert.Equal(t, "<@&42>", RoleMention("42"))
}

func TestIsDuplicateCommandError(t *testing.T) {
	restErr := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: 50035, Message: "Command already exists"},
	}
	assert.True(t, isDuplicateCommandError(restErr))
	assert.False(t, isDuplicateCommandError(errors.New("timeout")))
}
