package audio

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSniff(t *testing.T) {
	cases := map[string]Container{
		"RIFF\x00\x00\x00\x00WAVEfmt ": ContainerWAV,
		"OggS\x00\x02":                 ContainerOgg,
		"ID3\x04\x00":                  ContainerMP3,
		"\xff\xfb\x90\x00":             ContainerMP3,
		"not audio at all":             ContainerUnknown,
		"":                             ContainerUnknown,
	}
	for in, want := range cases {
		if got := Sniff([]byte(in)); got != want {
			t.Errorf("Sniff(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestDecodeWAV(t *testing.T) {
	const rate = 8000
	pcm := make([]int16, rate/2)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 16384
		} else {
			pcm[i] = -16384
		}
	}

	decoded, err := NewDecoder(discardLogger()).Decode(EncodeWAV(pcm, rate, 1))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.SampleRate != rate {
		t.Errorf("SampleRate = %d, want %d", decoded.SampleRate, rate)
	}
	if got := len(decoded.Channel(0)); got != len(pcm) {
		t.Fatalf("samples = %d, want %d", got, len(pcm))
	}
	if d := decoded.Duration(); d != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", d)
	}
	if v := decoded.Channel(0)[0]; math.Abs(v-0.5) > 0.001 {
		t.Errorf("first sample = %f, want 0.5", v)
	}
	if v := decoded.Channel(0)[1]; math.Abs(v+0.5) > 0.001 {
		t.Errorf("second sample = %f, want -0.5", v)
	}
}

func TestDecodeUnknownData(t *testing.T) {
	_, err := NewDecoder(discardLogger()).Decode([]byte("definitely not audio"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeTruncatedOgg(t *testing.T) {
	_, err := NewDecoder(discardLogger()).Decode([]byte("OggS\x00\x02\x00\x00"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodedHelpers(t *testing.T) {
	var nilDecoded *Decoded
	if nilDecoded.Duration() != 0 || nilDecoded.Channel(0) != nil {
		t.Error("nil Decoded should be empty")
	}

	d := &Decoded{SampleRate: 2, Samples: [][]float64{{1, -1}, {0.5, 2}}}
	got := d.Interleaved()
	want := []int16{32767, 16383, -32767, 32767}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Interleaved = %v, want %v", got, want)
		}
	}
	if d.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", d.Duration())
	}
}

func TestSourceTable(t *testing.T) {
	table := NewSourceTable()
	ref := table.Create([]byte("abc"))
	if table.Len() != 1 {
		t.Fatalf("Len = %d, want 1", table.Len())
	}
	data, err := table.Resolve(ref)
	if err != nil || string(data) != "abc" {
		t.Fatalf("Resolve = %q, %v", data, err)
	}
	if other := table.Create([]byte("abc")); other == ref {
		t.Error("references should be unique")
	}

	table.Revoke(ref)
	if _, err := table.Resolve(ref); !errors.Is(err, ErrSourceRevoked) {
		t.Errorf("expected ErrSourceRevoked, got %v", err)
	}
	table.Revoke("blob:unknown")
}
