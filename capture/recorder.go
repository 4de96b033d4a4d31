// Package capture records one audio session at a time from a Device and keeps a
// rolling amplitude window for display while it runs.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pridepath/session-pipeline/clients"
	cfg "github.com/pridepath/session-pipeline/config"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// MinLevel keeps silent bars visible.
const MinLevel = 0.02

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

type StopReason string

const (
	StopManual   StopReason = "manual"
	StopCap      StopReason = "cap"
	StopEnded    StopReason = "ended"
	StopTeardown StopReason = "teardown"
)

// Device hands out an exclusive audio stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// TypedDevice is a Device that knows the encoding of what it streams.
type TypedDevice interface {
	Device
	MIMEType() string
}

// Stream is an open capture. Chunks is closed when the source ends.
// Spectrum returns the current per-band magnitudes, 0-255.
type Stream interface {
	Chunks() <-chan []byte
	Spectrum() []byte
	Close() error
}

// Session is a finalized recording.
type Session struct {
	ID        string
	Data      []byte
	MIMEType  string
	StartedAt time.Time
	StoppedAt time.Time
	Reason    StopReason
}

func (s *Session) Duration() time.Duration { return s.StoppedAt.Sub(s.StartedAt) }

func (s *Session) Audio() clients.Audio {
	a := clients.Audio{Data: s.Data, MIMEType: s.MIMEType}
	a.Filename = a.FileName("session-" + s.ID)
	return a
}

// active is the state of one running session.
type active struct {
	id      string
	stream  Stream
	cancel  context.CancelFunc
	timer   *time.Timer
	wg      sync.WaitGroup
	once    sync.Once
	done    chan struct{}
	started time.Time
	mime    string
	chunks  [][]byte // buffer loop only until wg is done
}

type Recorder struct {
	dev      Device
	maxDur   time.Duration
	tick     time.Duration
	mimeType string

	// OnLevel, if set before Start, receives a copy of the bar window on every tick.
	OnLevel func(levels []float64)

	mu       sync.Mutex
	state    State
	cur      *active
	last     *Session
	closeErr error
	levels   []float64
}

func NewRecorder(dev Device, a cfg.Audio) *Recorder {
	bars := a.Bars
	if bars <= 0 {
		bars = 40
	}
	tick := a.Tick
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &Recorder{
		dev:      dev,
		maxDur:   a.MaxDuration,
		tick:     tick,
		mimeType: a.Format,
		state:    StateIdle,
		levels:   idleLevels(bars),
	}
}

// mimeFor prefers the device's own encoding over the configured format.
func (r *Recorder) mimeFor() string {
	if td, ok := r.dev.(TypedDevice); ok {
		if t := td.MIMEType(); t != "" {
			return t
		}
	}
	return r.mimeType
}

func idleLevels(n int) []float64 {
	l := make([]float64, n)
	for i := range l {
		l[i] = MinLevel
	}
	return l
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Levels returns a copy of the current bar window, oldest first.
func (r *Recorder) Levels() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.levels...)
}

// Start acquires the device and begins buffering and sampling.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRecording {
		return ErrAlreadyRecording
	}

	stream, err := r.dev.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return fmt.Errorf("open device: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a := &active{
		id:      uuid.NewString(),
		stream:  stream,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
		mime:    r.mimeFor(),
	}
	r.cur = a
	r.state = StateRecording
	r.closeErr = nil
	r.levels = idleLevels(len(r.levels))

	a.wg.Add(2)
	go r.bufferLoop(loopCtx, a)
	go r.levelLoop(loopCtx, a)
	if r.maxDur > 0 {
		a.timer = time.AfterFunc(r.maxDur, func() { r.stopSession(a, StopCap) })
	}
	log.WithFields(log.Fields{"session": a.id, "cap": r.maxDur}).Info("recording started")
	return nil
}

func (r *Recorder) bufferLoop(ctx context.Context, a *active) {
	defer a.wg.Done()
	chunks := a.stream.Chunks()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-chunks:
			if !ok {
				// stopSession waits on this loop, so it can't run inline
				go r.stopSession(a, StopEnded)
				return
			}
			a.chunks = append(a.chunks, c)
		}
	}
}

func (r *Recorder) levelLoop(ctx context.Context, a *active) {
	defer a.wg.Done()
	t := time.NewTicker(r.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lvl := Level(a.stream.Spectrum())
			r.mu.Lock()
			copy(r.levels, r.levels[1:])
			r.levels[len(r.levels)-1] = lvl
			var snap []float64
			if r.OnLevel != nil {
				snap = append(snap, r.levels...)
			}
			r.mu.Unlock()
			if snap != nil {
				r.OnLevel(snap)
			}
		}
	}
}

// stopSession is the only way a session ends. It runs once per session no matter
// how many triggers fire.
func (r *Recorder) stopSession(a *active, reason StopReason) {
	a.once.Do(func() {
		if a.timer != nil {
			a.timer.Stop()
		}
		a.cancel()
		a.wg.Wait()
		err := a.stream.Close()

		sess := &Session{
			ID:        a.id,
			Data:      bytes.Join(a.chunks, nil),
			MIMEType:  a.mime,
			StartedAt: a.started,
			StoppedAt: time.Now(),
			Reason:    reason,
		}

		r.mu.Lock()
		if r.cur == a {
			r.cur = nil
			r.state = StateStopped
		}
		r.last = sess
		r.closeErr = err
		r.mu.Unlock()

		entry := log.WithFields(log.Fields{"session": a.id, "reason": reason, "bytes": len(sess.Data)})
		if err != nil {
			entry.WithError(err).Warn("device release failed")
		}
		entry.Info("recording stopped")
		close(a.done)
	})
}

func (r *Recorder) result() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.closeErr
}

// Stop ends the running session and returns it. After an automatic stop it returns
// the session that was finalized.
func (r *Recorder) Stop() (*Session, error) {
	r.mu.Lock()
	a, state := r.cur, r.state
	r.mu.Unlock()

	if a == nil {
		if state == StateStopped {
			return r.result()
		}
		return nil, ErrNotRecording
	}
	r.stopSession(a, StopManual)
	return r.result()
}

// Wait blocks until the running session stops by any path.
func (r *Recorder) Wait(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	a, state := r.cur, r.state
	r.mu.Unlock()

	if a == nil {
		if state == StateStopped {
			return r.result()
		}
		return nil, ErrNotRecording
	}
	select {
	case <-a.done:
		return r.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the device if a session is still running.
func (r *Recorder) Close() error {
	r.mu.Lock()
	a := r.cur
	r.mu.Unlock()
	if a == nil {
		return nil
	}
	r.stopSession(a, StopTeardown)
	_, err := r.result()
	return err
}

// Level reduces a spectrum snapshot to one display level in [MinLevel, 1].
func Level(spectrum []byte) float64 {
	if len(spectrum) == 0 {
		return MinLevel
	}
	sum := 0
	for _, b := range spectrum {
		sum += int(b)
	}
	v := float64(sum) / float64(len(spectrum)) / 255
	switch {
	case v < MinLevel:
		return MinLevel
	case v > 1:
		return 1
	}
	return v
}
