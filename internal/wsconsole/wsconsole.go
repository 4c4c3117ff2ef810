// Package wsconsole is a WebSocket chat adapter. Each connection is one user;
// every inbound JSON message is answered with exactly one JSON reply.
//
// Inbound:
//
//	{"type": "text", "text": "\\audnote"}
//	{"type": "audio", "data": "<base64>", "mime": "audio/ogg"}
//
// Outbound:
//
//	{"text": "...", "url": "...", "quick_replies": [{"label": "...", "text": "..."}]}
//
// The adapter does not authenticate anyone: a client picks its own user id,
// and with it any other user's session. Serve it only on a loopback or
// otherwise trusted network.
package wsconsole

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/clubnote/internal/chat"
)

// DefaultReadLimit bounds one inbound message. Voice memos are base64 encoded.
const DefaultReadLimit = 32 << 20

type inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data []byte `json:"data,omitempty"`
	MIME string `json:"mime,omitempty"`
}

type quickReply struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type outbound struct {
	Text         string       `json:"text,omitempty"`
	URL          string       `json:"url,omitempty"`
	QuickReplies []quickReply `json:"quick_replies,omitempty"`
}

// Option configures a [Handler].
type Option func(*Handler)

// WithReadLimit overrides [DefaultReadLimit].
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithOriginPatterns allows cross-origin browser clients matching patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.origins = patterns }
}

// Handler upgrades HTTP requests and feeds messages to a [chat.Handler].
type Handler struct {
	chat      chat.Handler
	readLimit int64
	origins   []string
}

// New returns a Handler dispatching to h.
func New(h chat.Handler, opts ...Option) *Handler {
	ws := &Handler{chat: h, readLimit: DefaultReadLimit}
	for _, o := range opts {
		o(ws)
	}
	return ws
}

// ServeHTTP implements [http.Handler]. The user id comes from the "user"
// query parameter and is trusted as given; without it every connection gets
// a fresh id.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("wsconsole: accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.readLimit)

	user := r.URL.Query().Get("user")
	if user == "" {
		user = "ws-" + uuid.NewString()
	}
	log := slog.With("user", user, "transport", "websocket")
	log.Debug("wsconsole: connected")

	if err := h.serve(r.Context(), conn, user); err != nil {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
			log.Debug("wsconsole: disconnected")
			return
		}
		log.Warn("wsconsole: connection closed", "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, user string) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			if err := h.write(ctx, conn, chat.Reply{Text: "expected a JSON text frame"}); err != nil {
				return err
			}
			continue
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			if err := h.write(ctx, conn, chat.Reply{Text: "invalid JSON: " + err.Error()}); err != nil {
				return err
			}
			continue
		}
		ev := chat.Event{User: user, Kind: chat.Kind(in.Type), Text: in.Text, Data: in.Data, MIMEType: in.MIME}
		if ev.Kind == "" {
			ev.Kind = chat.KindText
		}
		if err := h.write(ctx, conn, h.chat.Handle(ctx, ev)); err != nil {
			return err
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, r chat.Reply) error {
	out := outbound{Text: r.Text, URL: r.URL}
	for _, q := range r.QuickReplies {
		out.QuickReplies = append(out.QuickReplies, quickReply{Label: q.Label, Text: q.Text})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
