package ui

import (
	"sync"
	"time"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashDurations = map[FlashLevel]time.Duration{
	FlashInfo: 4 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is a transient notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest transient notification. A newer message
// replaces the current one regardless of level.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	now     func() time.Time
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) {
	f.Set(FlashInfo, msg, 0)
}

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) {
	f.Set(FlashWarn, msg, 0)
}

// Err sets an error-level flash message.
func (f *FlashModel) Err(err error) {
	if err == nil {
		return
	}
	f.Set(FlashErr, err.Error(), 0)
}

// Set stores msg at level for d. A zero d uses the level's default.
func (f *FlashModel) Set(level FlashLevel, msg string, d time.Duration) {
	if d <= 0 {
		d = flashDurations[level]
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(d)}
}

// Current returns the active flash message, or false once it expired.
func (f *FlashModel) Current() (FlashMessage, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || !f.now().Before(f.current.Expires) {
		return FlashMessage{}, false
	}
	return f.current, true
}

// Clear drops the current message.
func (f *FlashModel) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = FlashMessage{}
}
