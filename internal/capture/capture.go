// Package capture holds the client-side recording core: it sits between a
// streaming speech recognizer and the transcript API, deciding which
// recognition results become stored segments. Interim results never leave
// this package; only finalized text reaches the sink.
package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoSpeech is reported by recognizers when a listening window closed
// without detecting speech. It is routine and never surfaces to the user.
var ErrNoSpeech = errors.New("no speech detected")

// ErrMutedLocally is returned by Start while the local actor is muted.
var ErrMutedLocally = errors.New("cannot start capture while muted")

// ResultReceiver receives recognition events from the engine's callback
// thread.
type ResultReceiver interface {
	OnResult(text string, isFinal bool)
	OnError(err error)
	// OnEnd fires when the engine stops on its own, including after a
	// silence timeout.
	OnEnd()
}

// Recognizer abstracts the streaming speech engine.
type Recognizer interface {
	Start(language string, r ResultReceiver) error
	Stop()
}

// SegmentSink receives finalized segments, typically forwarding them to the
// transcript API.
type SegmentSink interface {
	Append(speakerName, text string, timestamp int64) error
}

// Mode selects the per-final flush policy.
type Mode int

const (
	// ModeCollaborative stores every final as its own segment; each
	// participant runs their own capture.
	ModeCollaborative Mode = iota
	// ModeSolo is one device capturing for the whole room: finals
	// concatenate into a single segment until the operator switches the
	// active speaker.
	ModeSolo
)

// State of the recorder.
type State int

const (
	StateIdle State = iota
	StateCapturing
)

// Recorder drives one capture session. All methods are safe for concurrent
// use; recognizer callbacks may arrive on any goroutine.
type Recorder struct {
	mu sync.Mutex

	rec      Recognizer
	sink     SegmentSink
	mode     Mode
	language string
	log      zerolog.Logger
	now      func() time.Time

	state     State
	intent    bool // true while the user wants recording to continue
	muted     bool
	speaker   string
	interim   string
	pending   []string // solo mode: finals waiting for a speaker switch
	pendingAt int64    // capture time of the first pending final
	lastErr   error
}

// NewRecorder creates a recorder for one speaker label.
func NewRecorder(rec Recognizer, sink SegmentSink, mode Mode, speaker, language string, log zerolog.Logger) *Recorder {
	return &Recorder{
		rec:      rec,
		sink:     sink,
		mode:     mode,
		speaker:  speaker,
		language: language,
		log:      log,
		now:      time.Now,
	}
}

// State returns the current recorder state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Interim returns the current not-yet-final text for local display.
func (r *Recorder) Interim() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interim
}

// Err returns the last non-routine engine error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Start begins capturing. Refused locally while muted; the server would
// reject the segments anyway, so the engine is never started.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.muted {
		r.mu.Unlock()
		return ErrMutedLocally
	}
	if r.state == StateCapturing {
		r.mu.Unlock()
		return nil
	}
	r.state = StateCapturing
	r.intent = true
	r.lastErr = nil
	lang := r.language
	r.mu.Unlock()

	if err := r.rec.Start(lang, r); err != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.intent = false
		r.mu.Unlock()
		return fmt.Errorf("start recognizer: %w", err)
	}
	return nil
}

// Stop ends the session. A final that the engine delivers after Stop is
// still flushed, speech that was already spoken belongs in the transcript.
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.intent = false
	r.state = StateIdle
	r.interim = ""
	flush := r.takePendingLocked()
	r.mu.Unlock()

	r.rec.Stop()
	r.emit(flush)
}

// SwitchSpeaker flushes text buffered for the current speaker and starts
// attributing to the new one. Solo mode only; in collaborative mode each
// final already carries its speaker.
func (r *Recorder) SwitchSpeaker(name string) {
	r.mu.Lock()
	flush := r.takePendingLocked()
	r.speaker = name
	r.mu.Unlock()

	r.emit(flush)
}

// ObserveMute reacts to a mute state change pushed from the server. Muting
// while capturing stops the engine immediately; buffered text is flushed so
// nothing already spoken is lost. Unmuting does not restart capture.
func (r *Recorder) ObserveMute(muted bool) {
	r.mu.Lock()
	r.muted = muted
	stop := muted && r.state == StateCapturing
	speaker := r.speaker
	var flush *flushOp
	if stop {
		r.state = StateIdle
		r.intent = false
		r.interim = ""
		flush = r.takePendingLocked()
	}
	r.mu.Unlock()

	if stop {
		r.rec.Stop()
		r.emit(flush)
		r.log.Info().Str("speaker", speaker).Msg("capture stopped by mute")
	}
}

// OnResult implements ResultReceiver.
func (r *Recorder) OnResult(text string, isFinal bool) {
	r.mu.Lock()
	if !isFinal {
		r.interim = text
		r.mu.Unlock()
		return
	}
	r.interim = ""
	text = strings.TrimSpace(text)
	if text == "" {
		r.mu.Unlock()
		return
	}

	var flush *flushOp
	switch r.mode {
	case ModeCollaborative:
		flush = &flushOp{speaker: r.speaker, text: text, at: r.now().UnixMilli()}
	case ModeSolo:
		if len(r.pending) == 0 {
			r.pendingAt = r.now().UnixMilli()
		}
		r.pending = append(r.pending, text)
		// A trailing final after Stop has no later switch to flush it.
		if !r.intent {
			flush = r.takePendingLocked()
		}
	}
	r.mu.Unlock()

	r.emit(flush)
}

// OnError implements ResultReceiver. Silence is routine and swallowed;
// anything else is kept for the caller and stops the session.
func (r *Recorder) OnError(err error) {
	if errors.Is(err, ErrNoSpeech) {
		return
	}
	r.mu.Lock()
	r.lastErr = err
	r.state = StateIdle
	r.intent = false
	r.mu.Unlock()
	r.log.Error().Err(err).Msg("recognizer error")
}

// OnEnd implements ResultReceiver. Engines stop on their own after silence
// timeouts; while the user still wants to record, the session restarts.
func (r *Recorder) OnEnd() {
	r.mu.Lock()
	restart := r.intent
	lang := r.language
	if !restart {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if !restart {
		return
	}
	if err := r.rec.Start(lang, r); err != nil {
		r.mu.Lock()
		r.lastErr = err
		r.state = StateIdle
		r.intent = false
		r.mu.Unlock()
		r.log.Error().Err(err).Msg("recognizer restart failed")
	}
}

type flushOp struct {
	speaker string
	text    string
	at      int64
}

// takePendingLocked drains the solo buffer into a single flush. Caller holds mu.
func (r *Recorder) takePendingLocked() *flushOp {
	if len(r.pending) == 0 {
		return nil
	}
	op := &flushOp{
		speaker: r.speaker,
		text:    strings.Join(r.pending, " "),
		at:      r.pendingAt,
	}
	r.pending = nil
	r.pendingAt = 0
	return op
}

func (r *Recorder) emit(op *flushOp) {
	if op == nil {
		return
	}
	if err := r.sink.Append(op.speaker, op.text, op.at); err != nil {
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		r.log.Error().Str("speaker", op.speaker).Err(err).Msg("segment append failed")
	}
}
