// Package mcp exposes clubnote capabilities as Model Context Protocol tools
// over Streamable HTTP.
//
// Two tools are registered:
//   - "normalize_location" rewrites campus facility names into building codes.
//   - "calendar_link" turns an event poster into a Google Calendar link.
package mcp

import (
	"context"
	"errors"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/clubnote/internal/location"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Locations rewrites and resolves facility names.
type Locations interface {
	Normalize(text string) string
	Resolve(name string) (location.Building, bool)
}

// Linker builds calendar links from image URLs.
type Linker interface {
	Link(ctx context.Context, imgURL string) (string, error)
}

type normalizeArgs struct {
	Text string `json:"text" jsonschema:"free text mentioning campus buildings, in Chinese or English"`
}

type buildingResult struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Abbrev  string   `json:"abbrev,omitempty"`
	English []string `json:"english,omitempty"`
}

type normalizeResult struct {
	Normalized string          `json:"normalized"`
	Building   *buildingResult `json:"building,omitempty"`
}

type calendarArgs struct {
	ImageURL string `json:"img_url" jsonschema:"http(s) URL of an event poster image"`
}

type calendarResult struct {
	URL string `json:"url"`
}

// NewServer builds the MCP server. linker may be nil, in which case
// calendar_link is not offered.
func NewServer(locations Locations, linker Linker) *mcpsdk.Server {
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "clubnote", Version: Version}, nil)

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "normalize_location",
		Description: "Rewrite campus facility names in text into canonical building codes (e.g. 台北 -> TPE).",
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest, in normalizeArgs) (*mcpsdk.CallToolResult, normalizeResult, error) {
		if in.Text == "" {
			return nil, normalizeResult{}, errors.New("text is required")
		}
		out := normalizeResult{Normalized: locations.Normalize(in.Text)}
		if b, ok := locations.Resolve(in.Text); ok {
			out.Building = &buildingResult{Code: b.Code, Name: b.TW, Abbrev: b.TWAbbrev, English: b.EN}
		}
		return nil, out, nil
	})

	if linker != nil {
		mcpsdk.AddTool(s, &mcpsdk.Tool{
			Name:        "calendar_link",
			Description: "Read the time, place and title from an event poster and return a Google Calendar template link.",
		}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in calendarArgs) (*mcpsdk.CallToolResult, calendarResult, error) {
			link, err := linker.Link(ctx, in.ImageURL)
			if err != nil {
				return nil, calendarResult{}, err
			}
			return nil, calendarResult{URL: link}, nil
		})
	}
	return s
}

// Handler serves s over Streamable HTTP.
func Handler(s *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s }, nil)
}
