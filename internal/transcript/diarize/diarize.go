// Package diarize assigns speaker labels to transcript segments.
//
// A [Provider] returns speaker turns for a recording; [Assign] maps those turns
// onto recogniser segments by time overlap. When no provider is configured,
// or it fails, [Single] labels every segment with [DefaultSpeaker].
package diarize

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

// DefaultSpeaker is the implicit label used when diarization is unavailable.
const DefaultSpeaker = "SPEAKER_00"

// Turn is one contiguous stretch of a single speaker.
type Turn struct {
	Start   time.Duration
	End     time.Duration
	Speaker string
}

// Provider discovers speaker turns in a recording. Speaker ids are opaque and
// discovered at runtime.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Diarize(ctx context.Context, clip *audio.Clip) ([]Turn, error)
}

// Label formats the canonical label for the n-th speaker.
func Label(n int) string {
	return fmt.Sprintf("SPEAKER_%02d", n)
}

// Single returns a copy of segments with every speaker set to
// [DefaultSpeaker].
func Single(segments []types.Segment) []types.Segment {
	out := make([]types.Segment, len(segments))
	for i, s := range segments {
		s.Speaker = DefaultSpeaker
		out[i] = s
	}
	return out
}

// Assign returns a copy of segments where each segment carries the speaker of
// the turns it overlaps most. A segment overlapping no turn takes the speaker
// of the nearest turn. With no turns at all, [Single] is applied.
func Assign(segments []types.Segment, turns []Turn) []types.Segment {
	if len(turns) == 0 {
		return Single(segments)
	}
	out := make([]types.Segment, len(segments))
	for i, s := range segments {
		overlap := make(map[string]time.Duration)
		var best string
		for _, t := range turns {
			d := min(s.End, t.End) - max(s.Start, t.Start)
			if d <= 0 {
				continue
			}
			overlap[t.Speaker] += d
			if best == "" || overlap[t.Speaker] > overlap[best] {
				best = t.Speaker
			}
		}
		if best == "" {
			best = nearest(s, turns)
		}
		s.Speaker = best
		out[i] = s
	}
	return out
}

func nearest(s types.Segment, turns []Turn) string {
	mid := s.Start + s.Duration()/2
	best, bestDist := turns[0].Speaker, time.Duration(-1)
	for _, t := range turns {
		var d time.Duration
		switch {
		case mid < t.Start:
			d = t.Start - mid
		case mid > t.End:
			d = mid - t.End
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = t.Speaker, d
		}
	}
	return best
}

// Relabel renames speakers to SPEAKER_00, SPEAKER_01, ... in order of first
// appearance. Empty labels become [DefaultSpeaker].
func Relabel(segments []types.Segment) []types.Segment {
	names := make(map[string]string)
	out := make([]types.Segment, len(segments))
	for i, s := range segments {
		if s.Speaker == "" {
			s.Speaker = DefaultSpeaker
		}
		n, ok := names[s.Speaker]
		if !ok {
			n = Label(len(names))
			names[s.Speaker] = n
		}
		s.Speaker = n
		out[i] = s
	}
	return out
}

// Labelled reports whether every segment already carries a speaker, as
// happens when the recogniser diarizes on its own.
func Labelled(segments []types.Segment) bool {
	if len(segments) == 0 {
		return false
	}
	for _, s := range segments {
		if s.Speaker == "" {
			return false
		}
	}
	return true
}
