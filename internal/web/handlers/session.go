package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// SessionStatus represents the status of a camera session.
type SessionStatus string

// SessionStatus constants define the lifecycle states of a camera session.
const (
	SessionStatusRunning SessionStatus = "running"
	SessionStatusStopped SessionStatus = "stopped"
	SessionStatusFailed  SessionStatus = "failed"
)

// SessionEvent represents an event from a camera session.
type SessionEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for sessions.
// Embed this in session structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan SessionEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan SessionEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// SSESource is the interface required by streamSSEEvents to stream events via SSE.
type SSESource interface {
	AddListener() chan SessionEvent
	RemoveListener(ch chan SessionEvent)
	GetStatus() SessionStatus
}

// CameraSession is one run of the live attendance loop.
type CameraSession struct {
	EventBroadcaster

	id        string
	status    SessionStatus
	errMsg    string
	frames    int
	startedAt time.Time
	stoppedAt *time.Time
	latest    []byte

	done chan struct{}
}

// CameraSessionInfo is the JSON view of a camera session.
type CameraSessionInfo struct {
	ID        string        `json:"id,omitempty"`
	Status    SessionStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	Frames    int           `json:"frames"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	StoppedAt *time.Time    `json:"stopped_at,omitempty"`
}

func newCameraSession(id string, cancel context.CancelFunc) *CameraSession {
	s := &CameraSession{
		id:        id,
		status:    SessionStatusRunning,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.cancel = cancel
	return s
}

// GetStatus returns the current session status (implements SSESource).
func (s *CameraSession) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Info returns a snapshot of the session.
func (s *CameraSession) Info() CameraSessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	startedAt := s.startedAt
	return CameraSessionInfo{
		ID:        s.id,
		Status:    s.status,
		Error:     s.errMsg,
		Frames:    s.frames,
		StartedAt: &startedAt,
		StoppedAt: s.stoppedAt,
	}
}

// LatestFrame returns the most recent annotated frame as JPEG, or nil before the first frame.
func (s *CameraSession) LatestFrame() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *CameraSession) setFrame(jpegData []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = jpegData
	s.frames++
	return s.frames
}

// finish moves a running session to status and records msg as its error.
// It reports false if the session had already ended.
func (s *CameraSession) finish(status SessionStatus, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusRunning {
		return false
	}
	now := time.Now()
	s.status = status
	s.errMsg = msg
	s.stoppedAt = &now
	return true
}

// Stop cancels the session loop and waits until the camera is released or ctx ends.
func (s *CameraSession) Stop(ctx context.Context) {
	if s.finish(SessionStatusStopped, "") {
		s.SendEvent(SessionEvent{Type: "stopped", Message: "Camera stopped"})
	}
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

// Done is closed once the session loop has exited and released the camera.
func (s *CameraSession) Done() <-chan struct{} {
	return s.done
}
