package llm_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/clubnote/pkg/provider/llm"
)

func TestStripCodeFence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{"  plain text  ", "plain text"},
	}
	for _, tc := range tests {
		if got := llm.StripCodeFence(tc.in); got != tc.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	type payload struct {
		Title string `json:"title"`
	}
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"plain", `{"title":"社課"}`, false},
		{"fenced", "```json\n{\"title\":\"社課\"}\n```", false},
		{"prose", `Sure! Here is the form: {"title":"x"}`, true},
		{"trailing", `{"title":"x"} and more`, true},
		{"unknown field", `{"title":"x","extra":1}`, true},
		{"empty", ``, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var p payload
			err := llm.DecodeJSON(tc.in, &p)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, llm.ErrNotJSON) {
				t.Errorf("err = %v, want ErrNotJSON", err)
			}
		})
	}
}
