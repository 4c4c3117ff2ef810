// Package discord is the Discord chat adapter. It answers direct messages:
// message text and attachments become [chat.Event] values, and quick
// replies are rendered as buttons whose clicks are fed back as text.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/clubnote/internal/chat"
)

// Sender is the subset of [discordgo.Session] the adapter writes through.
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Option configures a [Bot].
type Option func(*Bot)

// WithHTTPClient sets the client used to download attachments.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.client = c }
}

// WithMaxAttachmentBytes caps a single attachment. Default: 25 MiB.
func WithMaxAttachmentBytes(n int64) Option {
	return func(b *Bot) {
		if n > 0 {
			b.maxAttachment = n
		}
	}
}

// Bot owns the Discord gateway connection and forwards DMs to a handler.
type Bot struct {
	token         string
	handler       chat.Handler
	client        *http.Client
	maxAttachment int64
	router        *Router

	mu      sync.Mutex
	session *discordgo.Session
	ctx     context.Context
}

// New creates a Bot. The gateway connection is opened by [Bot.Run].
func New(token string, h chat.Handler, opts ...Option) *Bot {
	b := &Bot{
		token:         token,
		handler:       h,
		client:        http.DefaultClient,
		maxAttachment: 25 << 20,
		router:        NewRouter(),
		ctx:           context.Background(),
	}
	for _, o := range opts {
		o(b)
	}
	b.router.RegisterComponentPrefix(quickReplyPrefix, b.onQuickReply)
	return b
}

// Run connects to Discord and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	session, err := discordgo.New("Bot " + b.token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	b.mu.Lock()
	b.session = session
	b.ctx = ctx
	b.mu.Unlock()

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if s.State != nil && s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
			return
		}
		b.HandleMessage(b.context(), s, m.Message)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(b.context(), s, i)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	slog.Info("discord adapter connected")

	<-ctx.Done()
	if err := session.Close(); err != nil {
		slog.Warn("discord: close session", "err", err)
	}
	slog.Info("discord adapter closed")
	return nil
}

// Router returns the interaction router.
func (b *Bot) Router() *Router { return b.router }

func (b *Bot) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}
