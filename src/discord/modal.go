package discord

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
)

const (
	FeedbackModalID = "feedback_form"

	fieldReferendum = "referendum"
	fieldContext    = "context"

	maxContextLength = 4000
)

// FeedbackForm is what a submitted feedback modal carried.
type FeedbackForm struct {
	Referendum string
	Context    string
}

// FeedbackModal is the response that opens the feedback form.
func FeedbackModal() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: FeedbackModalID,
			Title:    "Feedback Form",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    fieldReferendum,
						Label:       "Referendum",
						Style:       discordgo.TextInputShort,
						Placeholder: "Enter the referendum number",
						MinLength:   1,
						MaxLength:   10,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    fieldContext,
						Label:       "Context",
						Style:       discordgo.TextInputParagraph,
						Placeholder: "Enter context here",
						MinLength:   1,
						MaxLength:   maxContextLength,
					},
				}},
			},
		},
	}
}

// ParseFeedbackForm pulls the two inputs out of a modal submission. The
// referendum must be a number, optionally written as "#123".
func ParseFeedbackForm(data discordgo.ModalSubmitInteractionData) (FeedbackForm, error) {
	values := make(map[string]string)
	for _, row := range data.Components {
		for _, c := range rowComponents(row) {
			switch input := c.(type) {
			case *discordgo.TextInput:
				values[input.CustomID] = input.Value
			case discordgo.TextInput:
				values[input.CustomID] = input.Value
			}
		}
	}

	form := FeedbackForm{
		Referendum: strings.TrimPrefix(strings.TrimSpace(values[fieldReferendum]), "#"),
		Context:    strings.TrimSpace(values[fieldContext]),
	}
	if form.Referendum == "" || strings.IndexFunc(form.Referendum, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return FeedbackForm{}, fmt.Errorf("referendum must be a number, got %q", values[fieldReferendum])
	}
	if form.Context == "" {
		return FeedbackForm{}, fmt.Errorf("context is required")
	}
	return form, nil
}

func rowComponents(c discordgo.MessageComponent) []discordgo.MessageComponent {
	switch row := c.(type) {
	case *discordgo.ActionsRow:
		return row.Components
	case discordgo.ActionsRow:
		return row.Components
	default:
		return []discordgo.MessageComponent{c}
	}
}
