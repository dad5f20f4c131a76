package waveform

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/lisuiheng/voxtape/audio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDecoder struct {
	decoded *audio.Decoded
	err     error
}

func (d fakeDecoder) Decode([]byte) (*audio.Decoded, error) {
	return d.decoded, d.err
}

func TestBlockMeans(t *testing.T) {
	samples := []float64{1, -1, 0.5, -0.5, 0.25, 0.25, 9}
	got := BlockMeans(samples, 3)
	want := Profile{1, 0.5, 0.25}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("BlockMeans = %v, want %v (remainder dropped)", got, want)
		}
	}
}

func TestBlockMeansShortInput(t *testing.T) {
	got := BlockMeans([]float64{0.9, 0.9}, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, v := range got {
		if v != 0 {
			t.Errorf("bar %d = %f, want 0", i, v)
		}
	}
}

func TestExtractLengthAndRange(t *testing.T) {
	samples := make([]float64, 10000)
	for i := range samples {
		samples[i] = math.Sin(float64(i) / 10)
	}
	e := NewExtractor(fakeDecoder{decoded: &audio.Decoded{SampleRate: 1000, Samples: [][]float64{samples}}}, discardLogger())

	for _, bars := range []int{1, 75, 100, 200} {
		profile, err := e.Extract(nil, bars)
		if err != nil {
			t.Fatalf("Extract(%d) failed: %v", bars, err)
		}
		if len(profile) != bars {
			t.Errorf("len = %d, want %d", len(profile), bars)
		}
		for i, v := range profile {
			if v < 0 || v > 1 {
				t.Errorf("bar %d = %f out of range", i, v)
			}
		}
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	pcm := make([]int16, 8000)
	for i := range pcm {
		pcm[i] = int16((i * 37) % 20000)
	}
	data := audio.EncodeWAV(pcm, 8000, 1)
	e := NewExtractor(audio.NewDecoder(discardLogger()), discardLogger())

	first, err := e.Extract(data, 100)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := e.Extract(data, 100)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bar %d differs: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestAnalyzeDuration(t *testing.T) {
	data := audio.EncodeWAV(make([]int16, 16000), 8000, 1)
	a, err := NewExtractor(audio.NewDecoder(discardLogger()), discardLogger()).Analyze(data, 50)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Duration.Seconds() != 2 {
		t.Errorf("Duration = %v, want 2s", a.Duration)
	}
	if a.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", a.SampleRate)
	}
	if a.Profile.Peak() != 0 {
		t.Errorf("silence should have zero peak, got %f", a.Profile.Peak())
	}
}

func TestExtractDecodeError(t *testing.T) {
	e := NewExtractor(fakeDecoder{err: errors.New("corrupt")}, discardLogger())
	if _, err := e.Extract([]byte("x"), 10); !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	e = NewExtractor(audio.NewDecoder(discardLogger()), discardLogger())
	if _, err := e.Extract([]byte("garbage bytes"), 10); !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("expected ErrDecode for unknown data, got %v", err)
	}
}

func TestExtractInvalidBars(t *testing.T) {
	e := NewExtractor(fakeDecoder{}, discardLogger())
	if _, err := e.Extract(nil, 0); !errors.Is(err, ErrInvalidBarCount) {
		t.Fatalf("expected ErrInvalidBarCount, got %v", err)
	}
}

func TestProfileResample(t *testing.T) {
	p := Profile{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	got := p.Resample(5)
	want := Profile{0, 2, 4, 6, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Resample = %v, want %v", got, want)
		}
	}
	if up := (Profile{1, 2}).Resample(4); up[0] != 1 || up[1] != 1 || up[2] != 2 || up[3] != 2 {
		t.Errorf("upsample = %v", up)
	}
	if (Profile{}).Resample(3) != nil {
		t.Error("empty profile should resample to nil")
	}
}
