package otel

// The drain goroutine is the only reader of l.ch and the only writer to l.w.
// l.mu guards the ring pointer alone; RingBuffer has its own lock and is
// never called with l.mu held.

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize bounds the async write queue.
const queueSize = 2048

type entry struct {
	data []byte
	ev   Event
}

// Logger writes events as JSONL from a background goroutine.
//
// All methods are safe on a nil *Logger, so components can take an optional
// logger without guarding every call.
type Logger struct {
	mu        sync.Mutex
	ring      *RingBuffer
	sessionID string
	ch        chan entry
	w         io.Writer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogger starts a Logger that writes to w. Close flushes it.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		sessionID: fmt.Sprintf("%x", sid[:]),
		ch:        make(chan entry, queueSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go l.drain()
	return l
}

// NewNullLogger returns a Logger that discards output but still feeds an
// attached ring buffer.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

func (l *Logger) drain() {
	defer close(l.done)
	for e := range l.ch {
		if _, err := l.w.Write(e.data); err != nil {
			l.dropped.Add(1)
		}

		l.mu.Lock()
		rb := l.ring
		l.mu.Unlock()

		if rb != nil {
			rb.Push(e.ev)
		}
	}
}

// Emit queues e. It never blocks: when the queue is full or the logger is
// closed the event is counted as dropped.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	// Close may win the race between the closed check and the send.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	data, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case l.ch <- entry{data: data, ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err is logged with an empty message.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	var msg string
	if err != nil {
		msg = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: msg})
}

// SetRingBuffer attaches buf; subsequent events are also pushed into it.
func (l *Logger) SetRingBuffer(buf *RingBuffer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = buf
}

// SessionID identifies this run in every emitted line.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Dropped returns how many events were lost.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close drains pending events and stops the background goroutine. Emit calls
// racing with Close are dropped.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done

		if d := l.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "feedview: %d events dropped in session %s\n", d, l.sessionID)
		}
	})
}
