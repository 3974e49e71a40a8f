package application

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"cleanxpert/internal/domain"
)

var ErrDisplayClosed = errors.New("display closed")

const (
	EventSnapshot = "snapshot"
	EventStatus   = "status"
	EventLog      = "log"
)

type DisplayState struct {
	Status string           `json:"status"`
	Lines  []domain.LogLine `json:"lines"`
}

type DisplayEvent struct {
	Type   string          `json:"type"`
	Status string          `json:"status,omitempty"`
	Line   *domain.LogLine `json:"line,omitempty"`
	State  *DisplayState   `json:"state,omitempty"`
}

// DisplayListener is called on the display goroutine for every change.
// Implementations must not call back into the Display synchronously.
type DisplayListener interface {
	OnDisplayEvent(ev DisplayEvent) error
}

// Display holds the status string and the log buffer. All state is owned
// by the Run goroutine; other goroutines only post operations to it.
type Display struct {
	ops      chan func()
	done     chan struct{}
	maxLines int
	now      func() time.Time

	status    string
	lines     []domain.LogLine
	listeners map[int]DisplayListener
	nextID    int
}

// NewDisplay creates a display. maxLines <= 0 keeps every line.
func NewDisplay(maxLines int) *Display {
	return &Display{
		ops:       make(chan func(), 64),
		done:      make(chan struct{}),
		maxLines:  maxLines,
		now:       time.Now,
		status:    domain.StatusDisconnected,
		listeners: make(map[int]DisplayListener),
	}
}

// Run applies posted operations until ctx is cancelled.
func (d *Display) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-d.ops:
			op()
		}
	}
}

func (d *Display) post(op func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.ops <- op:
		return true
	case <-d.done:
		return false
	}
}

func (d *Display) SetStatus(status string) bool {
	return d.post(func() {
		d.status = status
		d.emit(DisplayEvent{Type: EventStatus, Status: status})
	})
}

func (d *Display) AppendLine(text string) bool {
	return d.post(func() {
		line := domain.LogLine{Text: text, At: d.now()}
		d.lines = append(d.lines, line)
		if d.maxLines > 0 && len(d.lines) > d.maxLines {
			d.lines = slices.Delete(d.lines, 0, len(d.lines)-d.maxLines)
		}
		d.emit(DisplayEvent{Type: EventLog, Line: &line})
	})
}

func (d *Display) Snapshot(ctx context.Context) (DisplayState, error) {
	reply := make(chan DisplayState, 1)
	if !d.post(func() { reply <- d.state() }) {
		return DisplayState{}, ErrDisplayClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-d.done:
		return DisplayState{}, ErrDisplayClosed
	case <-ctx.Done():
		return DisplayState{}, ctx.Err()
	}
}

// Watch registers l. It first receives a snapshot, then every later change.
// A listener that returns an error is dropped.
func (d *Display) Watch(l DisplayListener) (unwatch func()) {
	idCh := make(chan int, 1)
	ok := d.post(func() {
		id := d.nextID
		d.nextID++
		idCh <- id
		state := d.state()
		if err := l.OnDisplayEvent(DisplayEvent{Type: EventSnapshot, State: &state}); err != nil {
			return
		}
		d.listeners[id] = l
	})
	if !ok {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			select {
			case id := <-idCh:
				d.post(func() { delete(d.listeners, id) })
			case <-d.done:
			}
		})
	}
}

func (d *Display) state() DisplayState {
	return DisplayState{Status: d.status, Lines: slices.Clone(d.lines)}
}

func (d *Display) emit(ev DisplayEvent) {
	for id, l := range d.listeners {
		if err := l.OnDisplayEvent(ev); err != nil {
			delete(d.listeners, id)
		}
	}
}
