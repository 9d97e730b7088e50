package notify

import (
	"fmt"
	"sync"
	"time"

	"bakerybms/client/internal/domain"
	"bakerybms/client/internal/xid"
)

// Contract durations per notification kind. Callers that need a different
// lifetime pass it to Add explicitly.
const (
	DefaultDuration    = 5 * time.Second
	SuccessDuration    = 3 * time.Second
	ErrorDuration      = 6 * time.Second
	LowStockDuration   = 8 * time.Second
	OutOfStockDuration = 10 * time.Second

	// NoAutoClose keeps a notification until it is dismissed manually.
	NoAutoClose = time.Duration(-1)
)

// Engine is the ephemeral alert inbox. Notifications are held in insertion
// order and expire on their own timers; nothing here is ever persisted.
type Engine struct {
	mu     sync.Mutex
	items  []domain.Notification
	timers map[string]*time.Timer
	closed bool
}

func NewEngine() *Engine {
	return &Engine{timers: make(map[string]*time.Timer)}
}

// Add inserts a notification at the tail and schedules its removal after
// autoClose. A zero autoClose means DefaultDuration; NoAutoClose disables
// expiry. Returns the generated id.
func (e *Engine) Add(kind string, title string, message string, autoClose time.Duration) string {
	if autoClose == 0 {
		autoClose = DefaultDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ""
	}

	id := xid.New("ntf")
	e.items = append(e.items, domain.Notification{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if autoClose > 0 {
		e.timers[id] = time.AfterFunc(autoClose, func() { e.Remove(id) })
	}
	return id
}

// Remove is idempotent: removing an id that already expired is not an
// error, so manual dismissal can race auto-expiry safely.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(id)
}

func (e *Engine) removeLocked(id string) {
	if timer, ok := e.timers[id]; ok {
		timer.Stop()
		delete(e.timers, id)
	}
	for i, item := range e.items {
		if item.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return
		}
	}
}

func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
	e.items = e.items[:0]
}

// List returns the current inbox in display (insertion) order.
func (e *Engine) List() []domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Notification, len(e.items))
	copy(out, e.items)
	return out
}

// Close stops all expiry timers and rejects further adds.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
	e.items = nil
}

func (e *Engine) NotifyLowStock(name string, stock int, threshold int) string {
	return e.Add(domain.NotifyWarning, "Low Stock Alert",
		fmt.Sprintf("%s is running low! Current stock: %d (threshold: %d)", name, stock, threshold),
		LowStockDuration)
}

func (e *Engine) NotifyOutOfStock(name string) string {
	return e.Add(domain.NotifyError, "Out of Stock",
		fmt.Sprintf("%s is out of stock!", name),
		OutOfStockDuration)
}

func (e *Engine) NotifySuccess(title string, message string) string {
	return e.Add(domain.NotifySuccess, title, message, SuccessDuration)
}

func (e *Engine) NotifyError(title string, message string) string {
	return e.Add(domain.NotifyError, title, message, ErrorDuration)
}

func (e *Engine) NotifyInfo(title string, message string) string {
	return e.Add(domain.NotifyInfo, title, message, DefaultDuration)
}
