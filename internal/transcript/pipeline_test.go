package transcript_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/transcript"
	"github.com/MrWong99/clubnote/internal/transcript/diarize"
	diarizemock "github.com/MrWong99/clubnote/internal/transcript/diarize/mock"
	"github.com/MrWong99/clubnote/internal/transcript/script"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	sttmock "github.com/MrWong99/clubnote/pkg/provider/stt/mock"
	"github.com/MrWong99/clubnote/pkg/types"
)

// toneClip returns one second of a 440 Hz tone, loud enough not to count as
// silence.
func toneClip() *audio.Clip {
	s := make([]int16, audio.SampleRate)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate))
	}
	return audio.NewClip(s, audio.ContainerWAV)
}

// fakeTranslator fails the first failN calls, then uppercases.
type fakeTranslator struct {
	failN int
	calls int
}

func (f *fakeTranslator) Translate(_ context.Context, segs []types.Segment, _, target string) ([]types.Segment, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, pipeline.ErrTranslation
	}
	out := make([]types.Segment, len(segs))
	for i, s := range segs {
		s.Text = strings.ToUpper(s.Text)
		s.Language = target
		out[i] = s
	}
	return out, nil
}

func segs(texts ...string) []types.Segment {
	out := make([]types.Segment, len(texts))
	for i, t := range texts {
		out[i] = types.Segment{
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1)*time.Second + 200*time.Millisecond,
			Text:  t,
		}
	}
	return out
}

func TestPipeline_Run_FullChain(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Result: &stt.Result{Language: "zh", Segments: segs("这是第一句", "这是第二句")}}
	d := &diarizemock.Provider{Turns: []diarize.Turn{
		{Start: 0, End: time.Second, Speaker: "A"},
		{Start: time.Second, End: 3 * time.Second, Speaker: "B"},
	}}
	norm, err := script.New(script.Traditional)
	if err != nil {
		t.Fatal(err)
	}
	translator := &fakeTranslator{}

	p := transcript.New(tr,
		transcript.WithDiarizer(d),
		transcript.WithNormalizer(norm),
		transcript.WithTranslator(translator, "zh-TW"),
	)
	got, err := p.Run(context.Background(), toneClip())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if translator.calls != 0 {
		t.Errorf("translator called %d times for same-language input", translator.calls)
	}
	if got.Segments[0].Text != "這是第一句" {
		t.Errorf("seg[0] = %q, want normalized text", got.Segments[0].Text)
	}
	if got.Segments[1].Start < got.Segments[0].End {
		t.Error("segments overlap after alignment")
	}
	if sp := got.Speakers(); len(sp) != 2 || sp[0] != "SPEAKER_00" || sp[1] != "SPEAKER_01" {
		t.Errorf("speakers = %v", sp)
	}
	want := "SPEAKER_00: 這是第一句\nSPEAKER_01: 這是第二句\n"
	if r := got.Render(); r != want {
		t.Errorf("Render() = %q, want %q", r, want)
	}
}

func TestPipeline_Run_Silent(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Result: &stt.Result{Language: "en", Segments: segs("ghost")}}
	p := transcript.New(tr)

	got, err := p.Run(context.Background(), audio.NewClip(make([]int16, audio.SampleRate), audio.ContainerWAV))
	if !errors.Is(err, pipeline.ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if pipeline.IsFatal(err) {
		t.Error("silent audio must be non-fatal")
	}
	if got == nil || !got.Empty() {
		t.Errorf("transcript = %+v, want empty", got)
	}
	if tr.CallCount() != 0 {
		t.Error("backend contacted for a silent clip")
	}
}

func TestPipeline_Run_NoSpeechFromBackend(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Err: stt.ErrNoSpeech}
	p := transcript.New(tr, transcript.WithRetryDelay(time.Millisecond))

	_, err := p.Run(context.Background(), toneClip())
	if !errors.Is(err, pipeline.ErrTranscription) || pipeline.IsFatal(err) {
		t.Fatalf("err = %v, want non-fatal ErrTranscription", err)
	}
	if tr.CallCount() != 1 {
		t.Errorf("calls = %d, ErrNoSpeech must not be retried", tr.CallCount())
	}
}

func TestPipeline_Run_TranscriberFails(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Err: errors.New("503")}
	p := transcript.New(tr, transcript.WithRetryDelay(time.Millisecond))

	_, err := p.Run(context.Background(), toneClip())
	if !pipeline.IsFatal(err) || pipeline.FailedStage(err) != pipeline.StageTranscribe {
		t.Fatalf("err = %v, want fatal transcribe error", err)
	}
	var ue *pipeline.UpstreamError
	if !errors.As(err, &ue) || ue.Service != "stt" {
		t.Errorf("err = %v, want UpstreamError{stt}", err)
	}
	if tr.CallCount() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", tr.CallCount())
	}
}

func TestPipeline_Run_DiarizerFallback(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Result: &stt.Result{Language: "en", Segments: segs("a", "b")}}
	d := &diarizemock.Provider{Err: errors.New("no gpu")}

	got, err := transcript.New(tr, transcript.WithDiarizer(d)).Run(context.Background(), toneClip())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range got.Segments {
		if s.Speaker != diarize.DefaultSpeaker {
			t.Errorf("speaker = %q, want %q", s.Speaker, diarize.DefaultSpeaker)
		}
	}
	if got.Render() != "a\nb\n" {
		t.Errorf("single-speaker render = %q", got.Render())
	}
}

func TestPipeline_Run_Translation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		failN       int
		wantSkipped bool
		wantText    string
		wantCalls   int
	}{
		{"first attempt", 0, false, "HELLO", 1},
		{"retry succeeds", 1, false, "HELLO", 2},
		{"passes through", 2, true, "hello", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := &sttmock.Transcriber{Result: &stt.Result{Language: "en", Segments: segs("hello")}}
			ft := &fakeTranslator{failN: tc.failN}
			p := transcript.New(tr,
				transcript.WithTranslator(ft, "zh-TW"),
				transcript.WithRetryDelay(time.Millisecond),
			)
			got, err := p.Run(context.Background(), toneClip())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got.TranslationSkipped != tc.wantSkipped {
				t.Errorf("TranslationSkipped = %v", got.TranslationSkipped)
			}
			if got.Segments[0].Text != tc.wantText {
				t.Errorf("text = %q, want %q", got.Segments[0].Text, tc.wantText)
			}
			if ft.calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", ft.calls, tc.wantCalls)
			}
			if tc.wantSkipped && !strings.HasPrefix(got.Render(), transcript.SkippedMarker) {
				t.Errorf("render missing marker: %q", got.Render())
			}
		})
	}
}

func TestPipeline_Run_LabelledByRecogniser(t *testing.T) {
	t.Parallel()
	in := segs("a", "b")
	in[0].Speaker, in[1].Speaker = "SPEAKER_03", "SPEAKER_01"
	tr := &sttmock.Transcriber{Result: &stt.Result{Language: "en", Segments: in}}
	d := &diarizemock.Provider{}

	got, err := transcript.New(tr, transcript.WithDiarizer(d)).Run(context.Background(), toneClip())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.CallCount() != 0 {
		t.Error("diarizer called although the recogniser labelled speakers")
	}
	if got.Segments[0].Speaker != "SPEAKER_00" {
		t.Errorf("speaker = %q, want relabelled SPEAKER_00", got.Segments[0].Speaker)
	}
}

func TestTranscript_Empty(t *testing.T) {
	t.Parallel()
	var nilT *transcript.Transcript
	if !nilT.Empty() {
		t.Error("nil transcript not empty")
	}
	if !(&transcript.Transcript{Segments: []types.Segment{{Text: "  "}}}).Empty() {
		t.Error("whitespace-only transcript not empty")
	}
}
