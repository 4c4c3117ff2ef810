// Package align refines transcript segment boundaries.
//
// Alignment is best-effort. An [Aligner] may decline a language through
// [Aligner.Supports]; callers then keep the recogniser's coarse timestamps.
// [Monotonic] is always applied last and is what guarantees ordered,
// non-overlapping segments.
package align

import (
	"context"
	"slices"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Aligner tightens segment timestamps to word or phrase boundaries.
//
// Implementations must be safe for concurrent use and must not reorder or
// drop segments.
type Aligner interface {
	// Supports reports whether lang (ISO 639-1) can be aligned.
	Supports(lang string) bool

	// Align returns segments with refined Start/End and, where available,
	// word timings.
	Align(ctx context.Context, clip *audio.Clip, segments []types.Segment, lang string) ([]types.Segment, error)
}

// Monotonic sorts segments by start time and removes overlaps by moving each
// segment's start up to the previous segment's end. Zero-length results are
// kept so no text is lost. The input slice is not modified.
func Monotonic(segments []types.Segment) []types.Segment {
	out := slices.Clone(segments)
	slices.SortStableFunc(out, func(a, b types.Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	for i := range out {
		if out[i].Start < 0 {
			out[i].Start = 0
		}
		if i > 0 && out[i].Start < out[i-1].End {
			out[i].Start = out[i-1].End
		}
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start
		}
	}
	return out
}
