package discord

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc handles one button press.
type HandlerFunc func(ctx context.Context, s Sender, i *discordgo.InteractionCreate)

type route struct {
	id     string
	prefix bool
	fn     HandlerFunc
}

// Router picks the handler for a button press by its custom id. An exact
// id beats any prefix, and a longer prefix beats a shorter one.
type Router struct {
	mu     sync.RWMutex
	routes []route // exact ids first, then prefixes by descending length
}

// NewRouter returns a router without routes.
func NewRouter() *Router { return &Router{} }

// RegisterComponent routes the custom id customID to fn.
func (r *Router) RegisterComponent(customID string, fn HandlerFunc) {
	r.add(route{id: customID, fn: fn})
}

// RegisterComponentPrefix routes every custom id starting with prefix to fn.
// Quick-reply buttons carry their answer after the prefix.
func (r *Router) RegisterComponentPrefix(prefix string, fn HandlerFunc) {
	r.add(route{id: prefix, prefix: true, fn: fn})
}

func (r *Router) add(rt route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, rt)
	sort.SliceStable(r.routes, func(a, b int) bool {
		x, y := r.routes[a], r.routes[b]
		if x.prefix != y.prefix {
			return !x.prefix
		}
		return len(x.id) > len(y.id)
	})
}

func (r *Router) lookup(customID string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if rt.id == customID || (rt.prefix && strings.HasPrefix(customID, rt.id)) {
			return rt.fn
		}
	}
	return nil
}

// Handle runs the handler for a component interaction. Slash commands and
// other interaction types are not used by the bot and are dropped.
func (r *Router) Handle(ctx context.Context, s Sender, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		slog.Debug("discord: dropping interaction", "type", i.Type.String())
		return
	}
	id := i.MessageComponentData().CustomID
	fn := r.lookup(id)
	if fn == nil {
		slog.Warn("discord: button without route", "custom_id", id)
		RespondEphemeral(s, i, "Unknown component.")
		return
	}
	fn(ctx, s, i)
}
