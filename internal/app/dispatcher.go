package app

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/clubnote/internal/chat"
	"github.com/MrWong99/clubnote/internal/history"
	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/promo"
	"github.com/MrWong99/clubnote/internal/session"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

var errPromoDisabled = errors.New("app: promo generator not configured")

// Event outcomes for the session events metric. Every event ends in
// exactly one of them.
const (
	outcomePrompt = "prompt"
	outcomeRun    = "run"
	outcomeError  = "error"
)

// PromoGenerator writes the bilingual promo text.
type PromoGenerator interface {
	Generate(ctx context.Context, f promo.Fields) (*promo.Promo, error)
}

// action is what an event asks for once the session transaction commits.
type action int

const (
	actNone action = iota
	actNote
	actForm
	actPromo
)

// Dispatcher routes chat events through the per-user session state machine.
// State changes happen inside [session.Store.Update]; pipeline runs happen
// after it returns, so one user's long run never blocks another event's
// state transition.
type Dispatcher struct {
	sessions *session.Store
	history  history.Store
	runner   *Runner
	promo    PromoGenerator
	metrics  *observe.Metrics
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithPromo enables the promo flow.
func WithPromo(g PromoGenerator) DispatcherOption {
	return func(d *Dispatcher) { d.promo = g }
}

// WithDispatcherMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithDispatcherMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher over sessions and hist.
func NewDispatcher(sessions *session.Store, hist history.Store, runner *Runner, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sessions: sessions,
		history:  hist,
		runner:   runner,
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Handle answers one event. It never fails: every error becomes a reply.
func (d *Dispatcher) Handle(ctx context.Context, ev chat.Event) chat.Reply {
	ctx, span := observe.StartSpan(ctx, "dispatch."+string(ev.Kind))
	defer span.End()

	var (
		reply   chat.Reply
		outcome string
	)
	switch ev.Kind {
	case chat.KindText:
		reply, outcome = d.text(ctx, ev.User, strings.TrimSpace(ev.Text))
	case chat.KindAudio:
		reply, outcome = d.audio(ctx, ev)
	case chat.KindImage:
		reply, outcome = d.image(ctx, ev)
	default:
		reply, outcome = chat.Reply{Text: promo.Usage}, outcomeError
	}
	d.metrics.RecordSessionEvent(ctx, string(ev.Kind), outcome)
	return reply
}

func (d *Dispatcher) text(ctx context.Context, user, text string) (chat.Reply, string) {
	switch text {
	case cmdClear:
		return d.clear(ctx, user)
	case cmdMenu:
		return menu(), outcomePrompt
	case cmdForm:
		return d.start(ctx, user, session.ModeCollectingForm, replyForm)
	case cmdPDFNote:
		return d.start(ctx, user, session.ModeCollectingNote, replyPDFNote)
	case cmdAudNote:
		return d.start(ctx, user, session.ModeCollectingNote, replyAudNote)
	case cmdSlogan:
		return d.startPromo(ctx, user)
	}

	var (
		act    action
		fields promo.Fields
		pend   *session.Audio
		img    *types.Image
	)
	err := d.sessions.Update(ctx, user, func(s *session.Session) error {
		switch {
		case s.Awaiting == session.AwaitingKeyword:
			f, err := promo.Parse(text)
			if err != nil {
				return err
			}
			s.Awaiting = session.AwaitingNone
			fields, act = f, actPromo
		case text == cmdContinue && s.Mode == session.ModeCollectingNote:
			if !s.HasPending() {
				return &pipeline.InputError{Prompt: replyNothingPending}
			}
			pend, img = s.Take()
			act = actNote
		case text == cmdContinue && s.Mode == session.ModeCollectingForm:
			return &pipeline.InputError{Prompt: replyFormNeedsAudio}
		default:
			return &pipeline.InputError{Prompt: promo.Usage, Reason: "unrecognized text"}
		}
		return nil
	})
	if err != nil {
		return d.fail(ctx, user, err)
	}

	switch act {
	case actPromo:
		return d.runPromo(ctx, user, fields)
	case actNote:
		return d.runNote(ctx, user, pend, img)
	}
	return chat.Reply{Text: promo.Usage}, outcomeError
}

func (d *Dispatcher) audio(ctx context.Context, ev chat.Event) (chat.Reply, string) {
	upload := &session.Audio{Data: ev.Data, Declared: audio.ContainerFromMIME(ev.MIMEType)}

	var (
		act  action
		pend *session.Audio
		img  *types.Image
	)
	err := d.sessions.Update(ctx, ev.User, func(s *session.Session) error {
		switch s.Mode {
		case session.ModeCollectingForm:
			s.Reset()
			pend, act = upload, actForm
		case session.ModeCollectingNote:
			s.Audio = upload
			if s.Image != nil {
				pend, img = s.Take()
				act = actNote
			}
		default:
			return &pipeline.InputError{Prompt: replyAudioIdle}
		}
		return nil
	})
	if err != nil {
		return d.fail(ctx, ev.User, err)
	}

	switch act {
	case actForm:
		return d.runForm(ctx, ev.User, pend)
	case actNote:
		return d.runNote(ctx, ev.User, pend, img)
	}
	return chat.Reply{Text: replyAudioReceived}, outcomePrompt
}

func (d *Dispatcher) image(ctx context.Context, ev chat.Event) (chat.Reply, string) {
	upload := &types.Image{Data: ev.Data, MIMEType: ev.MIMEType}

	var (
		run  bool
		pend *session.Audio
		img  *types.Image
	)
	err := d.sessions.Update(ctx, ev.User, func(s *session.Session) error {
		switch s.Mode {
		case session.ModeCollectingForm:
			return &pipeline.InputError{Prompt: replyFormNeedsAudio, Reason: "image in form flow"}
		case session.ModeCollectingNote:
			s.Image = upload
			if s.Audio != nil {
				pend, img = s.Take()
				run = true
			}
		default:
			return &pipeline.InputError{Prompt: replyImageIdle}
		}
		return nil
	})
	if err != nil {
		return d.fail(ctx, ev.User, err)
	}
	if run {
		return d.runNote(ctx, ev.User, pend, img)
	}
	return chat.Reply{Text: replyImageReceived}, outcomePrompt
}

// start enters mode, discarding anything a previous flow collected.
func (d *Dispatcher) start(ctx context.Context, user string, mode session.Mode, prompt string) (chat.Reply, string) {
	err := d.sessions.Update(ctx, user, func(s *session.Session) error {
		s.Start(mode)
		return nil
	})
	if err != nil {
		return d.fail(ctx, user, err)
	}
	return chat.Reply{Text: prompt}, outcomePrompt
}

func (d *Dispatcher) startPromo(ctx context.Context, user string) (chat.Reply, string) {
	err := d.sessions.Update(ctx, user, func(s *session.Session) error {
		s.Start(session.ModeIdle)
		s.Awaiting = session.AwaitingKeyword
		return nil
	})
	if err != nil {
		return d.fail(ctx, user, err)
	}
	if err := d.history.Put(ctx, history.StateKey(user), "step", string(session.AwaitingKeyword)); err != nil {
		observe.Logger(ctx).Warn("failed to record promo step", "user", user, "err", err)
	}
	return chat.Reply{Text: promo.Prompt}, outcomePrompt
}

func (d *Dispatcher) clear(ctx context.Context, user string) (chat.Reply, string) {
	err := d.sessions.Update(ctx, user, func(s *session.Session) error {
		s.Reset()
		return nil
	})
	if err != nil {
		return d.fail(ctx, user, err)
	}
	err = errors.Join(
		d.history.Delete(ctx, history.ChatKey(user)),
		d.history.Delete(ctx, history.StateKey(user)),
	)
	if err != nil {
		observe.Logger(ctx).Error("failed to clear chat history", "user", user, "err", err)
		return chat.Reply{Text: replyClearFailed}, outcomeError
	}
	return chat.Reply{Text: replyCleared}, outcomePrompt
}

func (d *Dispatcher) runNote(ctx context.Context, user string, a *session.Audio, img *types.Image) (chat.Reply, string) {
	text, err := d.runner.Note(ctx, user, a, img)
	if err != nil {
		return d.fail(ctx, user, err)
	}
	return chat.Reply{Text: text}, outcomeRun
}

func (d *Dispatcher) runForm(ctx context.Context, user string, a *session.Audio) (chat.Reply, string) {
	link, err := d.runner.Form(ctx, user, a)
	if err != nil {
		return d.fail(ctx, user, err)
	}
	return chat.Reply{Text: replyFormCreated, URL: link}, outcomeRun
}

func (d *Dispatcher) runPromo(ctx context.Context, user string, f promo.Fields) (chat.Reply, string) {
	log := observe.Logger(ctx).With("user", user, "flow", flowPromo)
	if err := history.PutAll(ctx, d.history, history.ChatKey(user), f.Map()); err != nil {
		log.Warn("failed to store promo fields", "err", err)
	}
	if err := d.history.Delete(ctx, history.StateKey(user)); err != nil {
		log.Warn("failed to clear promo step", "err", err)
	}
	if d.promo == nil {
		return d.fail(ctx, user, errPromoDisabled)
	}

	log.Info(replyPromoStarted)
	p, err := d.promo.Generate(ctx, f)
	d.metrics.RecordRun(ctx, flowPromo, observe.Outcome(err))
	if err != nil {
		return d.fail(ctx, user, err)
	}
	return chat.Reply{Text: p.String()}, outcomeRun
}

// fail turns err into a reply. Input errors are expected and logged at
// debug; invariant violations at error since the store already reset the
// session.
func (d *Dispatcher) fail(ctx context.Context, user string, err error) (chat.Reply, string) {
	log := observe.Logger(ctx).With("user", user)
	var inErr *pipeline.InputError
	switch {
	case errors.Is(err, session.ErrInvariant):
		log.Error("session invariant violated, reset to idle", "err", err)
		return chat.Reply{Text: replyFailed}, outcomeError
	case errors.As(err, &inErr):
		log.Debug("input rejected", "err", err)
	default:
		log.Warn("event failed", "err", err, "stage", pipeline.FailedStage(err))
	}
	return chat.Reply{Text: errorReply(err)}, outcomeError
}
