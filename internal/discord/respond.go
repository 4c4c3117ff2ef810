package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/clubnote/internal/chat"
)

// quickReplyPrefix marks button custom ids carrying quick-reply text.
const quickReplyPrefix = "qr:"

// Discord allows at most five buttons per action row and 2000 characters
// per message.
const (
	buttonsPerRow  = 5
	maxContentSize = 2000
)

// components renders quick replies as button rows.
func components(r chat.Reply) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row discordgo.ActionsRow
	for _, q := range r.QuickReplies {
		row.Components = append(row.Components, discordgo.Button{
			Label:    q.Label,
			Style:    discordgo.PrimaryButton,
			CustomID: quickReplyPrefix + q.Text,
		})
		if len(row.Components) == buttonsPerRow {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// content flattens r and truncates it to Discord's message limit.
func content(r chat.Reply) string {
	s := []rune(r.String())
	if len(s) > maxContentSize {
		s = append(s[:maxContentSize-1], '…')
	}
	return string(s)
}

func send(s Sender, channelID string, r chat.Reply) {
	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    content(r),
		Components: components(r),
	})
	if err != nil {
		slog.Warn("discord: failed to send reply", "channel", channelID, "err", err)
	}
}

// DeferReply acknowledges an interaction whose answer follows later.
func DeferReply(s Sender, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Warn("discord: failed to defer reply", "err", err)
	}
}

// FollowUp sends the answer to a deferred interaction.
func FollowUp(s Sender, i *discordgo.InteractionCreate, r chat.Reply) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content:    content(r),
		Components: components(r),
	})
	if err != nil {
		slog.Warn("discord: failed to send follow-up", "err", err)
	}
}

// RespondEphemeral sends an ephemeral text response to an interaction.
func RespondEphemeral(s Sender, i *discordgo.InteractionCreate, text string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to send ephemeral response", "err", err)
	}
}
