package capture

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	receiver ResultReceiver
}

func (f *fakeRecognizer) Start(language string, r ResultReceiver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.receiver = r
	return nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type sinkCall struct {
	speaker string
	text    string
	at      int64
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (f *fakeSink) Append(speakerName, text string, timestamp int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sinkCall{speaker: speakerName, text: text, at: timestamp})
	return nil
}

func (f *fakeSink) all() []sinkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sinkCall(nil), f.calls...)
}

func newTestRecorder(mode Mode) (*Recorder, *fakeRecognizer, *fakeSink) {
	rec := &fakeRecognizer{}
	sink := &fakeSink{}
	r := NewRecorder(rec, sink, mode, "Alice", "en-US", zerolog.Nop())
	return r, rec, sink
}

func TestInterimNeverReachesSink(t *testing.T) {
	r, _, sink := newTestRecorder(ModeCollaborative)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	r.OnResult("hel", false)
	r.OnResult("hello wor", false)
	if got := r.Interim(); got != "hello wor" {
		t.Fatalf("interim not tracked: %q", got)
	}
	if len(sink.all()) != 0 {
		t.Fatalf("interim leaked to sink: %+v", sink.all())
	}

	r.OnResult("hello world", true)
	calls := sink.all()
	if len(calls) != 1 || calls[0].text != "hello world" {
		t.Fatalf("final not stored: %+v", calls)
	}
	if r.Interim() != "" {
		t.Fatal("interim not cleared after final")
	}
}

func TestCollaborativeOneSegmentPerFinal(t *testing.T) {
	r, _, sink := newTestRecorder(ModeCollaborative)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	r.OnResult("first utterance", true)
	r.OnResult("  ", true) // whitespace-only finals are dropped
	r.OnResult("second utterance", true)

	calls := sink.all()
	if len(calls) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(calls), calls)
	}
	if calls[0].text != "first utterance" || calls[1].text != "second utterance" {
		t.Fatalf("unexpected segments: %+v", calls)
	}
	for _, c := range calls {
		if c.speaker != "Alice" {
			t.Fatalf("wrong speaker: %+v", c)
		}
	}
}

func TestSoloConcatenatesUntilSpeakerSwitch(t *testing.T) {
	r, _, sink := newTestRecorder(ModeSolo)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	r.OnResult("we should ship", true)
	r.OnResult("by the end of the quarter", true)
	if len(sink.all()) != 0 {
		t.Fatalf("solo finals flushed early: %+v", sink.all())
	}

	r.SwitchSpeaker("Bob")
	r.OnResult("agreed", true)
	r.Stop()

	calls := sink.all()
	if len(calls) != 2 {
		t.Fatalf("expected 2 segments, got %+v", calls)
	}
	if calls[0].speaker != "Alice" || calls[0].text != "we should ship by the end of the quarter" {
		t.Fatalf("pre-switch segment wrong: %+v", calls[0])
	}
	if calls[1].speaker != "Bob" || calls[1].text != "agreed" {
		t.Fatalf("post-switch segment wrong: %+v", calls[1])
	}
}

func TestTrailingFinalAfterStopStillFlushes(t *testing.T) {
	r, _, sink := newTestRecorder(ModeCollaborative)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()

	// The engine can deliver one last final after the stop request.
	r.OnResult("parting words", true)
	calls := sink.all()
	if len(calls) != 1 || calls[0].text != "parting words" {
		t.Fatalf("trailing final lost: %+v", calls)
	}
}

func TestTrailingFinalAfterStopSoloMode(t *testing.T) {
	r, _, sink := newTestRecorder(ModeSolo)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()

	r.OnResult("parting words", true)
	calls := sink.all()
	if len(calls) != 1 || calls[0].text != "parting words" {
		t.Fatalf("trailing final lost in solo mode: %+v", calls)
	}
}

func TestAutoRestartWhileIntentHolds(t *testing.T) {
	r, rec, _ := newTestRecorder(ModeCollaborative)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.startCount() != 1 {
		t.Fatalf("expected 1 start, got %d", rec.startCount())
	}

	// Engine stops on its own after a silence window; session restarts.
	r.OnEnd()
	if rec.startCount() != 2 {
		t.Fatalf("expected restart, starts=%d", rec.startCount())
	}
	if r.State() != StateCapturing {
		t.Fatalf("state should remain capturing, got %v", r.State())
	}

	// After an explicit stop the engine ending is final.
	r.Stop()
	r.OnEnd()
	if rec.startCount() != 2 {
		t.Fatalf("restarted after explicit stop, starts=%d", rec.startCount())
	}
}

func TestNoSpeechIsSwallowed(t *testing.T) {
	r, _, _ := newTestRecorder(ModeCollaborative)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	r.OnError(ErrNoSpeech)
	if r.Err() != nil {
		t.Fatalf("no-speech should be swallowed, got %v", r.Err())
	}
	if r.State() != StateCapturing {
		t.Fatalf("no-speech should not stop capture, state %v", r.State())
	}

	realErr := errors.New("audio device lost")
	r.OnError(realErr)
	if !errors.Is(r.Err(), realErr) {
		t.Fatalf("real error not kept: %v", r.Err())
	}
	if r.State() != StateIdle {
		t.Fatalf("real error should stop capture, state %v", r.State())
	}
}

func TestMuteStopsCaptureReactively(t *testing.T) {
	r, rec, sink := newTestRecorder(ModeSolo)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.OnResult("one last thought", true)

	r.ObserveMute(true)
	if r.State() != StateIdle {
		t.Fatalf("mute did not stop capture, state %v", r.State())
	}
	if rec.stops != 1 {
		t.Fatalf("engine not stopped, stops=%d", rec.stops)
	}
	// Buffered speech from before the mute is flushed, not dropped.
	calls := sink.all()
	if len(calls) != 1 || calls[0].text != "one last thought" {
		t.Fatalf("pre-mute buffer lost: %+v", calls)
	}

	// Start is refused while muted, before touching the engine.
	if err := r.Start(); !errors.Is(err, ErrMutedLocally) {
		t.Fatalf("expected ErrMutedLocally, got %v", err)
	}
	if rec.startCount() != 1 {
		t.Fatalf("engine started while muted, starts=%d", rec.startCount())
	}

	// Unmute permits a fresh start but does not auto-restart.
	r.ObserveMute(false)
	if r.State() != StateIdle {
		t.Fatalf("unmute should not restart capture, state %v", r.State())
	}
	if err := r.Start(); err != nil {
		t.Fatalf("start after unmute: %v", err)
	}
}

func TestSinkErrorIsRecorded(t *testing.T) {
	r, _, sink := newTestRecorder(ModeCollaborative)
	sink.err = errors.New("network down")
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.OnResult("hello", true)
	if r.Err() == nil {
		t.Fatal("sink failure not surfaced via Err")
	}
}
