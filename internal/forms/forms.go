// Package forms publishes form specifications through the Google Forms API.
package forms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gforms "google.golang.org/api/forms/v1"
	"google.golang.org/api/option"

	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/pipeline"
)

// Scopes are the OAuth scopes needed to create forms.
var Scopes = []string{
	gforms.FormsBodyScope,
	gforms.DriveScope,
}

// RefreshTokenSource returns a token source that refreshes against Google's
// endpoint with a stored refresh token.
func RefreshTokenSource(ctx context.Context, clientID, clientSecret, refreshToken string) oauth2.TokenSource {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// Option configures a [Publisher].
type Option func(*settings)

type settings struct {
	endpoint string
	client   *http.Client
}

// WithBaseURL points the publisher at another API root.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.endpoint = strings.TrimRight(u, "/") + "/" }
}

// WithHTTPClient sets the underlying client. Its transport is wrapped with
// the token source.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.client = c }
}

// Publisher creates forms. It is safe for concurrent use.
type Publisher struct {
	svc *gforms.Service
}

// NewPublisher returns a Publisher authenticating with ts.
func NewPublisher(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Publisher, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}

	var copts []option.ClientOption
	if s.client != nil {
		copts = append(copts, option.WithHTTPClient(&http.Client{
			Timeout:   s.client.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: s.client.Transport},
		}))
	} else {
		copts = append(copts, option.WithTokenSource(ts))
	}
	if s.endpoint != "" {
		copts = append(copts, option.WithEndpoint(s.endpoint))
	}

	svc, err := gforms.NewService(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("forms: new service: %w", err)
	}
	return &Publisher{svc: svc}, nil
}

// itemRequests converts spec questions into batchUpdate createItem requests.
func itemRequests(spec *extract.FormSpec) []*gforms.Request {
	out := make([]*gforms.Request, 0, len(spec.Questions))
	for _, q := range spec.Questions {
		question := &gforms.Question{}
		switch q.Kind {
		case extract.SingleChoice:
			opts := make([]*gforms.Option, 0, len(q.Options))
			for _, o := range q.Options {
				opts = append(opts, &gforms.Option{Value: o})
			}
			question.ChoiceQuestion = &gforms.ChoiceQuestion{Type: "RADIO", Options: opts}
		default:
			question.TextQuestion = &gforms.TextQuestion{}
		}
		out = append(out, &gforms.Request{CreateItem: &gforms.CreateItemRequest{
			Item: &gforms.Item{
				Title:        q.Title,
				QuestionItem: &gforms.QuestionItem{Question: question},
			},
			// Index 0 is a zero value and would be dropped otherwise.
			Location: &gforms.Location{Index: int64(q.Index), ForceSendFields: []string{"Index"}},
		}})
	}
	return out
}

// Publish creates a form from spec and returns its responder URL. The spec
// is validated first; an invalid spec never reaches the API. Publishing is
// not retried since forms.create is not idempotent.
func (p *Publisher) Publish(ctx context.Context, spec *extract.FormSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", pipeline.Fatal(pipeline.StagePublish, fmt.Errorf("%w: %w", pipeline.ErrExtraction, err))
	}

	form := &gforms.Form{Info: &gforms.Info{Title: spec.Title, DocumentTitle: spec.DocumentTitle}}
	created, err := p.svc.Forms.Create(form).Context(ctx).Do()
	if err != nil {
		return "", upstream(fmt.Errorf("forms: create: %w", err))
	}
	if created.FormId == "" {
		return "", upstream(errors.New("forms: create returned no formId"))
	}

	update := &gforms.BatchUpdateFormRequest{Requests: itemRequests(spec)}
	if _, err := p.svc.Forms.BatchUpdate(created.FormId, update).Context(ctx).Do(); err != nil {
		return "", upstream(fmt.Errorf("forms: batchUpdate %s: %w", created.FormId, err))
	}
	if created.ResponderUri == "" {
		return "https://docs.google.com/forms/d/" + created.FormId + "/viewform", nil
	}
	return created.ResponderUri, nil
}

func upstream(err error) error {
	return pipeline.Fatal(pipeline.StagePublish, pipeline.Upstream("forms", err))
}
