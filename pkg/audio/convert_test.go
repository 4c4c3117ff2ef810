package audio_test

import (
	"math"
	"testing"

	"github.com/MrWong99/clubnote/pkg/audio"
)

func TestDownmix_Stereo(t *testing.T) {
	t.Parallel()
	got := audio.Downmix([]int{100, 300, -200, -400, 32767, 32767}, 2)
	want := []int16{200, -300, 32767}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownmix_MonoClamps(t *testing.T) {
	t.Parallel()
	got := audio.Downmix([]int{40000, -40000, 5}, 1)
	if got[0] != math.MaxInt16 || got[1] != math.MinInt16 || got[2] != 5 {
		t.Errorf("unexpected clamp result %v", got)
	}
}

func TestResample(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       int
		src, dst int
		want     int
	}{
		{"same rate", 160, 16000, 16000, 160},
		{"48k to 16k", 4800, 48000, 16000, 1600},
		{"44.1k to 16k", 44100, 44100, 16000, 16000},
		{"8k to 16k", 800, 8000, 16000, 1600},
		{"zero rate", 100, 0, 16000, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := audio.Resample(make([]int16, tt.in), tt.src, tt.dst)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestResample_Interpolates(t *testing.T) {
	t.Parallel()
	got := audio.Resample([]int16{0, 1000}, 1, 2)
	if len(got) != 4 {
		t.Fatalf("len = %d", len(got))
	}
	if got[1] != 500 {
		t.Errorf("midpoint = %d, want 500", got[1])
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()
	if audio.RMS(nil) != 0 {
		t.Error("RMS(nil) should be 0")
	}
	if got := audio.RMS([]int16{300, -300, 300, -300}); math.Abs(got-300) > 1e-9 {
		t.Errorf("RMS = %f, want 300", got)
	}
}
