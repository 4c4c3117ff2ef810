package discord_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/clubnote/internal/chat"
	"github.com/MrWong99/clubnote/internal/discord"
	"github.com/MrWong99/clubnote/internal/discord/mock"
)

type recorder struct {
	mu     sync.Mutex
	events []chat.Event
	reply  chat.Reply
}

func (r *recorder) Handle(_ context.Context, ev chat.Event) chat.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.reply
}

func dm(content string, attachments ...*discordgo.MessageAttachment) *discordgo.Message {
	return &discordgo.Message{
		ChannelID:   "dm-1",
		Content:     content,
		Author:      &discordgo.User{ID: "u1"},
		Attachments: attachments,
	}
}

func TestHandleMessage_Text(t *testing.T) {
	t.Parallel()

	rec := &recorder{reply: chat.Reply{Text: "hi", QuickReplies: []chat.QuickReply{{Label: "Note", Text: "C"}}}}
	bot := discord.New("token", rec)
	s := &mock.Sender{}

	bot.HandleMessage(context.Background(), s, dm("  C  "))

	if len(rec.events) != 1 || rec.events[0].Text != "C" || rec.events[0].Kind != chat.KindText {
		t.Fatalf("events = %+v, want one text event %q", rec.events, "C")
	}
	if len(s.Messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(s.Messages))
	}
	msg := s.Messages[0]
	if msg.ChannelID != "dm-1" || msg.Message.Content != "hi" {
		t.Errorf("sent %+v, want content %q in dm-1", msg, "hi")
	}
	if len(msg.Message.Components) != 1 {
		t.Fatalf("components = %d rows, want 1", len(msg.Message.Components))
	}
	row := msg.Message.Components[0].(discordgo.ActionsRow)
	btn := row.Components[0].(discordgo.Button)
	if btn.CustomID != "qr:C" || btn.Label != "Note" {
		t.Errorf("button = %+v, want qr:C/Note", btn)
	}
}

func TestHandleMessage_Ignored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *discordgo.Message
	}{
		{"guild", &discordgo.Message{GuildID: "g", Content: "C", Author: &discordgo.User{ID: "u1"}}},
		{"bot author", &discordgo.Message{Content: "C", Author: &discordgo.User{ID: "b", Bot: true}}},
		{"no author", &discordgo.Message{Content: "C"}},
		{"empty", dm("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			s := &mock.Sender{}
			discord.New("token", rec).HandleMessage(context.Background(), s, tt.msg)
			if len(rec.events) != 0 || len(s.Messages) != 0 {
				t.Errorf("events=%d sent=%d, want none", len(rec.events), len(s.Messages))
			}
		})
	}
}

func TestHandleMessage_Attachments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.ogg":
			w.Write([]byte("audio-bytes"))
		case "/poster.png":
			w.Write([]byte("image-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rec := &recorder{reply: chat.Reply{Text: "ok"}}
	bot := discord.New("token", rec, discord.WithHTTPClient(srv.Client()))
	s := &mock.Sender{}

	bot.HandleMessage(context.Background(), s, dm("",
		&discordgo.MessageAttachment{Filename: "clip.ogg", ContentType: "audio/ogg", URL: srv.URL + "/clip.ogg", Size: 11},
		&discordgo.MessageAttachment{Filename: "poster.png", URL: srv.URL + "/poster.png", Size: 11},
		&discordgo.MessageAttachment{Filename: "doc.pdf", ContentType: "application/pdf", URL: srv.URL + "/doc.pdf", Size: 3},
	))

	if len(rec.events) != 2 {
		t.Fatalf("events = %d, want 2", len(rec.events))
	}
	if ev := rec.events[0]; ev.Kind != chat.KindAudio || string(ev.Data) != "audio-bytes" || ev.MIMEType != "audio/ogg" {
		t.Errorf("audio event = %+v", ev)
	}
	if ev := rec.events[1]; ev.Kind != chat.KindImage || string(ev.Data) != "image-bytes" {
		t.Errorf("image event = %+v", ev)
	}

	// One notice for the unsupported PDF plus one reply per event.
	got := s.Contents()
	if len(got) != 3 {
		t.Fatalf("sent %v, want 3 messages", got)
	}
	if !strings.Contains(got[0], "doc.pdf") {
		t.Errorf("first message %q should name the skipped file", got[0])
	}
}

func TestHandleMessage_AttachmentTooLarge(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	bot := discord.New("token", rec, discord.WithMaxAttachmentBytes(4))
	s := &mock.Sender{}

	bot.HandleMessage(context.Background(), s, dm("",
		&discordgo.MessageAttachment{Filename: "clip.ogg", ContentType: "audio/ogg", URL: "http://invalid.test/clip.ogg", Size: 1024},
	))

	if len(rec.events) != 0 {
		t.Errorf("events = %d, want 0", len(rec.events))
	}
	if len(s.Messages) != 1 {
		t.Errorf("sent %d messages, want the skip notice", len(s.Messages))
	}
}

func TestRouter_QuickReply(t *testing.T) {
	t.Parallel()

	rec := &recorder{reply: chat.Reply{Text: "menu"}}
	bot := discord.New("token", rec)
	s := &mock.Sender{}

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		User: &discordgo.User{ID: "u7"},
		Data: discordgo.MessageComponentInteractionData{CustomID: "qr:選項"},
	}}
	bot.Router().Handle(context.Background(), s, i)

	if len(rec.events) != 1 || rec.events[0].Text != "選項" || rec.events[0].User != "u7" {
		t.Fatalf("events = %+v, want one 選項 event from u7", rec.events)
	}
	if len(s.Responses) != 1 || s.Responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Errorf("responses = %+v, want one deferred response", s.Responses)
	}
	if len(s.FollowUps) != 1 || s.FollowUps[0].Content != "menu" {
		t.Errorf("follow-ups = %+v, want %q", s.FollowUps, "menu")
	}
}

func TestRouter_UnknownComponent(t *testing.T) {
	t.Parallel()

	r := discord.NewRouter()
	s := &mock.Sender{}
	r.Handle(context.Background(), s, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: "nope"},
	}})

	if len(s.Responses) != 1 || s.Responses[0].Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("responses = %+v, want one ephemeral error", s.Responses)
	}
}

func TestRouter_Precedence(t *testing.T) {
	t.Parallel()

	var hit string
	route := func(name string) discord.HandlerFunc {
		return func(context.Context, discord.Sender, *discordgo.InteractionCreate) { hit = name }
	}
	r := discord.NewRouter()
	r.RegisterComponentPrefix("qr:", route("short prefix"))
	r.RegisterComponent("qr:menu", route("exact"))
	r.RegisterComponentPrefix("qr:form:", route("long prefix"))

	for id, want := range map[string]string{
		"qr:menu":     "exact",
		"qr:form:yes": "long prefix",
		"qr:C":        "short prefix",
	} {
		hit = ""
		r.Handle(context.Background(), &mock.Sender{}, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{CustomID: id},
		}})
		if hit != want {
			t.Errorf("%s routed to %q, want %q", id, hit, want)
		}
	}
}
