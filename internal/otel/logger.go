package otel

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize bounds the events waiting for the writer goroutine.
const queueSize = 4096

// Logger writes events as JSONL from a single background goroutine and
// mirrors them into an optional RingBuffer. Emit never blocks: when the
// queue is full the event is counted as dropped.
type Logger struct {
	session string
	queue   chan Event
	out     io.Writer
	closer  io.Closer
	ring    atomic.Pointer[RingBuffer]
	dropped atomic.Uint64
	done    chan struct{}
	finish  sync.Once

	// mu guards closed against a concurrent send on queue.
	mu     sync.RWMutex
	closed bool
}

// NewLogger returns a Logger writing to w. Close flushes it.
func NewLogger(w io.Writer) *Logger {
	var b [8]byte
	_, _ = rand.Read(b[:])
	l := &Logger{
		session: hex.EncodeToString(b[:]),
		queue:   make(chan Event, queueSize),
		out:     w,
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// NewNullLogger returns a Logger that discards everything it is given.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// OpenDaily returns a Logger appending to dir/pulse-YYYY-MM-DD.jsonl,
// switching files at local midnight. Close also closes the file.
func OpenDaily(dir string) (*Logger, error) {
	f, err := newDailyFile(dir, "pulse", time.Now)
	if err != nil {
		return nil, err
	}
	l := NewLogger(f)
	l.closer = f
	return l, nil
}

// SessionID returns the process-wide identifier stamped on every event.
func (l *Logger) SessionID() string {
	return l.session
}

func (l *Logger) run() {
	defer close(l.done)
	enc := json.NewEncoder(l.out)
	for e := range l.queue {
		if err := enc.Encode(e); err != nil {
			l.dropped.Add(1)
		}
		if rb := l.ring.Load(); rb != nil {
			rb.Push(e)
		}
	}
}

// Emit stamps e with the session and, when unset, the current time, then
// queues it. Debug events are discarded unless DebugEnabled. A nil Logger
// accepts and ignores events.
func (l *Logger) Emit(e Event) {
	if l == nil || (e.Level == LevelDebug && !DebugEnabled()) {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.session

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

// Debug emits a debug-level event.
func (l *Logger) Debug(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelDebug, Kind: kind, Comp: comp, Msg: msg})
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event carrying err's text. err may be nil.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SetRingBuffer mirrors subsequent events into rb. Pass nil to detach.
func (l *Logger) SetRingBuffer(rb *RingBuffer) {
	l.ring.Store(rb)
}

// RingBuffer returns the attached buffer, or nil.
func (l *Logger) RingBuffer() *RingBuffer {
	if l == nil {
		return nil
	}
	return l.ring.Load()
}

// Dropped counts events lost to a full queue, a closed logger or a
// failed write.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close drains the queue and closes the underlying file, if any. Later
// Emit calls are counted as dropped. Safe to call more than once.
func (l *Logger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	<-l.done
	l.finish.Do(func() {
		if l.closer != nil {
			l.closer.Close()
		}
		if n := l.dropped.Load(); n > 0 {
			fmt.Fprintf(os.Stderr, "pulse: session %s dropped %d events\n", l.session, n)
		}
	})
}
