package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/clubnote/internal/calendar"
	"github.com/MrWong99/clubnote/internal/health"
	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/resilience"
)

// CalendarLinker turns an image URL into a calendar template link.
type CalendarLinker interface {
	Link(ctx context.Context, imgURL string) (string, error)
}

// CalendarHandler serves GET /calendar?img_url=<url>. A valid link is a 307
// redirect; a link that cannot be built answers 422 with the body "Error".
func CalendarHandler(l CalendarLinker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		imgURL := r.URL.Query().Get("img_url")
		if imgURL == "" {
			http.Error(w, "missing img_url", http.StatusBadRequest)
			return
		}
		link, err := l.Link(r.Context(), imgURL)
		if err != nil {
			log := observe.Logger(r.Context()).With("img_url", imgURL, "err", err)
			var inErr *pipeline.InputError
			switch {
			case errors.Is(err, calendar.ErrInvalidURL), errors.Is(err, pipeline.ErrExtraction):
				log.Info("calendar link rejected")
				http.Error(w, "Error", http.StatusUnprocessableEntity)
			case errors.As(err, &inErr):
				log.Debug("calendar request invalid")
				http.Error(w, inErr.Prompt, http.StatusBadRequest)
			default:
				log.Warn("calendar link failed")
				http.Error(w, "Error", http.StatusBadGateway)
			}
			return
		}
		observe.Logger(r.Context()).Debug("calendar link built", "img_url", imgURL)
		http.Redirect(w, r, link, http.StatusTemporaryRedirect)
	})
}

// BreakerReporter is implemented by provider chains that guard each backend
// with a circuit breaker.
type BreakerReporter interface {
	States() map[string]resilience.State
}

// BreakerCheck fails readiness while every backend of b is shedding calls.
func BreakerCheck(name string, b BreakerReporter) health.Checker {
	return health.Checker{Name: name, Check: func(context.Context) error {
		states := b.States()
		for _, st := range states {
			if st != resilience.Open {
				return nil
			}
		}
		if len(states) == 0 {
			return nil
		}
		return fmt.Errorf("all %d %s providers are unavailable", len(states), name)
	}}
}
