package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lisuiheng/voxtape/audio"
)

func newTestPlayback() (*Playback, *fakeElement, *audio.SourceTable, *fakeClock, *eventLog) {
	element := &fakeElement{duration: 4 * time.Second}
	sources := audio.NewSourceTable()
	clock := newFakeClock()
	p := NewPlayback(element, sources, clock, 100*time.Millisecond, discardLogger())
	log := &eventLog{}
	p.SetEventHandler(log.handle)
	return p, element, sources, clock, log
}

func TestPlaybackBindsAndPlays(t *testing.T) {
	p, element, sources, _, log := newTestPlayback()
	clip := NewClip("recording.ogg", "audio/ogg", []byte("data"))

	if err := p.Play(clip); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if p.State() != PlaybackPlaying {
		t.Fatalf("state = %s, want playing", p.State())
	}
	if !strings.HasPrefix(element.src, "blob:") || sources.Len() != 1 {
		t.Fatalf("element src = %q, live refs = %d", element.src, sources.Len())
	}
	data, err := sources.Resolve(element.src)
	if err != nil || string(data) != "data" {
		t.Fatalf("bound source = %q, %v", data, err)
	}
	if log.count(EventPlaybackStarted) != 1 {
		t.Error("expected a playback started event")
	}
	if p.Duration() != 4*time.Second {
		t.Errorf("Duration = %v, want 4s", p.Duration())
	}

	// 重复Play不重新绑定
	p.Play(clip)
	if len(element.sources) != 1 {
		t.Errorf("SetSource calls = %d, want 1", len(element.sources))
	}
}

func TestPlaybackReportsPosition(t *testing.T) {
	p, element, _, clock, log := newTestPlayback()
	p.Play(NewClip("a", "audio/ogg", []byte("a")))

	element.seek(1500 * time.Millisecond)
	clock.Tick()
	ev, ok := log.last(EventPlaybackPosition)
	if !ok || ev.Position != 1500*time.Millisecond {
		t.Fatalf("position event = %+v", ev)
	}
	if p.Position() != 1500*time.Millisecond {
		t.Errorf("Position = %v", p.Position())
	}
}

func TestPlaybackEndedResetsToIdle(t *testing.T) {
	p, element, _, clock, log := newTestPlayback()
	clip := NewClip("a", "audio/ogg", []byte("a"))
	p.Play(clip)
	element.seek(3 * time.Second)
	clock.Tick()

	element.end()
	if p.State() != PlaybackIdle {
		t.Fatalf("state = %s after end, want idle", p.State())
	}
	if p.Position() != 0 {
		t.Errorf("Position = %v after end, want 0", p.Position())
	}
	if log.count(EventPlaybackEnded) != 1 {
		t.Error("expected one ended event")
	}
	if clock.active() != 0 {
		t.Error("position poll should stop after end")
	}

	positions := log.count(EventPlaybackPosition)
	clock.Tick()
	if log.count(EventPlaybackPosition) != positions {
		t.Error("no position events after end")
	}

	// 再次播放同一clip不需要重新绑定
	if err := p.Play(clip); err != nil || p.State() != PlaybackPlaying {
		t.Fatalf("replay failed: %v", err)
	}
	if len(element.sources) != 1 {
		t.Errorf("SetSource calls = %d, want 1", len(element.sources))
	}
}

func TestPlaybackPauseAndToggle(t *testing.T) {
	p, element, _, clock, log := newTestPlayback()
	clip := NewClip("a", "audio/ogg", []byte("a"))

	if err := p.Toggle(clip); err != nil || p.State() != PlaybackPlaying {
		t.Fatalf("Toggle should start playback: %v", err)
	}
	element.seek(2 * time.Second)
	if err := p.Toggle(clip); err != nil || p.State() != PlaybackPaused {
		t.Fatalf("Toggle should pause: %v", err)
	}
	if p.Position() != 2*time.Second {
		t.Errorf("paused position = %v, want 2s", p.Position())
	}
	if element.playing {
		t.Error("element should be paused")
	}
	if clock.active() != 0 {
		t.Error("poll should stop while paused")
	}
	if log.count(EventPlaybackPaused) != 1 {
		t.Error("expected a paused event")
	}

	// 暂停时到达的ended无效
	element.end()
	if p.State() != PlaybackPaused {
		t.Errorf("state = %s, ended while paused should be ignored", p.State())
	}
}

func TestPlaybackRebindRevokesPreviousRef(t *testing.T) {
	p, element, sources, _, _ := newTestPlayback()
	p.Play(NewClip("a", "audio/ogg", []byte("a")))
	first := element.src

	p.Play(NewClip("b", "audio/ogg", []byte("b")))
	if element.src == first {
		t.Fatal("new clip should bind a new reference")
	}
	if _, err := sources.Resolve(first); !errors.Is(err, audio.ErrSourceRevoked) {
		t.Errorf("old reference should be revoked, got %v", err)
	}
	if sources.Len() != 1 {
		t.Errorf("live refs = %d, want 1", sources.Len())
	}
}

func TestPlaybackIgnoresEndedFromPreviousSource(t *testing.T) {
	p, element, _, clock, log := newTestPlayback()
	p.Play(NewClip("a", "audio/ogg", []byte("a")))
	first := element.src
	p.Play(NewClip("b", "audio/ogg", []byte("b")))
	element.seek(time.Second)

	// a的结束通知在切换到b之后才到达
	element.endRef(first)
	if p.State() != PlaybackPlaying {
		t.Fatalf("state = %s, late ended from previous source should be ignored", p.State())
	}
	if log.count(EventPlaybackEnded) != 0 {
		t.Error("no ended event expected for the previous source")
	}
	if clock.active() != 1 {
		t.Errorf("active timers = %d, poll for b should keep running", clock.active())
	}
	clock.Tick()
	if p.Position() != time.Second {
		t.Errorf("Position = %v, want 1s", p.Position())
	}

	element.end()
	if p.State() != PlaybackIdle || log.count(EventPlaybackEnded) != 1 {
		t.Errorf("state = %s, ended events = %d after b ends", p.State(), log.count(EventPlaybackEnded))
	}
}

func TestPlaybackUnbind(t *testing.T) {
	p, element, sources, clock, log := newTestPlayback()
	p.Play(NewClip("a", "audio/ogg", []byte("a")))
	stalePoll := clock.timers[0].fn

	p.Unbind()
	if sources.Len() != 0 || element.src != "" || p.Clip() != nil {
		t.Fatal("Unbind should revoke the reference and clear the source")
	}
	if p.State() != PlaybackIdle {
		t.Errorf("state = %s, want idle", p.State())
	}

	positions := log.count(EventPlaybackPosition)
	stalePoll()
	if log.count(EventPlaybackPosition) != positions {
		t.Error("stale poll should be ignored after unbind")
	}
	p.Unbind()
}

func TestPlaybackErrors(t *testing.T) {
	p, element, sources, _, _ := newTestPlayback()
	if err := p.Play(nil); !errors.Is(err, ErrNoClip) {
		t.Fatalf("expected ErrNoClip, got %v", err)
	}

	element.playErr = errors.New("output busy")
	if err := p.Play(NewClip("a", "audio/ogg", []byte("a"))); err == nil {
		t.Fatal("expected play error")
	}
	if p.State() == PlaybackPlaying {
		t.Error("failed play must not report playing")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !element.closed || sources.Len() != 0 {
		t.Error("Close should release the element and revoke references")
	}
}
