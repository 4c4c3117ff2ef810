// Package mock provides a recording [discord.Sender] for tests.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Sent is one recorded channel message.
type Sent struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

// Sender records outgoing messages and interaction responses.
type Sender struct {
	mu sync.Mutex

	Messages  []Sent
	Responses []*discordgo.InteractionResponse
	FollowUps []*discordgo.WebhookParams

	// Err is returned by every call when non-nil.
	Err error
}

// ChannelMessageSendComplex records the message.
func (m *Sender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Sent{ChannelID: channelID, Message: data})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-message", ChannelID: channelID, Content: data.Content}, nil
}

// InteractionRespond records the response.
func (m *Sender) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up.
func (m *Sender) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// Contents returns the text of every sent channel message.
func (m *Sender) Contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Messages))
	for i, s := range m.Messages {
		out[i] = s.Message.Content
	}
	return out
}
