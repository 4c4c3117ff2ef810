package align

import (
	"context"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Words snaps each segment to the span of its own word timings. Segments
// without words keep their boundaries. It needs no model, so it supports
// every language.
type Words struct{}

var _ Aligner = Words{}

// Supports always returns true.
func (Words) Supports(string) bool { return true }

// Align trims leading and trailing silence using word timestamps.
func (Words) Align(_ context.Context, _ *audio.Clip, segments []types.Segment, _ string) ([]types.Segment, error) {
	out := make([]types.Segment, len(segments))
	for i, s := range segments {
		out[i] = s
		if len(s.Words) == 0 {
			continue
		}
		first, last := s.Words[0], s.Words[len(s.Words)-1]
		if first.Start >= s.Start && first.Start < s.End {
			out[i].Start = first.Start
		}
		if last.End <= s.End && last.End > out[i].Start {
			out[i].End = last.End
		}
	}
	return out, nil
}
