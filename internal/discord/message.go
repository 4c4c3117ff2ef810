package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/clubnote/internal/chat"
)

// HandleMessage answers a direct message. Guild messages and messages from
// bots are ignored. Text and every attachment are separate events and get
// separate replies, in message order.
func (b *Bot) HandleMessage(ctx context.Context, s Sender, m *discordgo.Message) {
	if m == nil || m.GuildID != "" || m.Author == nil || m.Author.Bot {
		return
	}
	log := slog.With("user", m.Author.ID, "transport", "discord")

	var events []chat.Event
	if text := strings.TrimSpace(m.Content); text != "" {
		events = append(events, chat.Event{User: m.Author.ID, Kind: chat.KindText, Text: text})
	}
	for _, a := range m.Attachments {
		ev, err := b.attachmentEvent(ctx, m.Author.ID, a)
		if err != nil {
			log.Warn("discord: skipping attachment", "file", a.Filename, "err", err)
			send(s, m.ChannelID, chat.Reply{Text: "無法讀取附件：" + a.Filename})
			continue
		}
		events = append(events, ev)
	}

	for _, ev := range events {
		send(s, m.ChannelID, b.handler.Handle(ctx, ev))
	}
}

func (b *Bot) attachmentEvent(ctx context.Context, user string, a *discordgo.MessageAttachment) (chat.Event, error) {
	ct := a.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Filename)))
	}
	kind, ok := chat.KindFromMIME(ct)
	if !ok {
		return chat.Event{}, fmt.Errorf("unsupported content type %q", ct)
	}
	if int64(a.Size) > b.maxAttachment {
		return chat.Event{}, fmt.Errorf("attachment is %d bytes, limit %d", a.Size, b.maxAttachment)
	}
	data, err := b.download(ctx, a.URL)
	if err != nil {
		return chat.Event{}, err
	}
	return chat.Event{User: user, Kind: kind, Data: data, MIMEType: ct}, nil
}

func (b *Bot) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download attachment: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxAttachment+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > b.maxAttachment {
		return nil, fmt.Errorf("attachment exceeds %d bytes", b.maxAttachment)
	}
	return data, nil
}

// onQuickReply treats a button click as if the user typed the button text.
// The answer may take a pipeline run, so the interaction is deferred first.
func (b *Bot) onQuickReply(ctx context.Context, s Sender, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == "" {
		return
	}
	text := strings.TrimPrefix(i.MessageComponentData().CustomID, quickReplyPrefix)
	DeferReply(s, i)
	reply := b.handler.Handle(ctx, chat.Event{User: user, Kind: chat.KindText, Text: text})
	FollowUp(s, i, reply)
}

func interactionUser(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
