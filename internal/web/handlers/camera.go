package handlers

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/frame"
)

const msgCameraFailed = "Failed to access camera"

// FrameSource is an open camera.
type FrameSource interface {
	Read() (image.Image, error)
	Close() error
}

// SourceOpener opens the camera for a new session.
type SourceOpener func() (FrameSource, error)

// KnownProvider supplies the current known-descriptor set.
type KnownProvider interface {
	Known() ([]facematch.Known, error)
}

// FrameProcessor recognizes and annotates a frame.
type FrameProcessor interface {
	Process(img image.Image, known []facematch.Known) (frame.Result, error)
}

// CameraHandler handles the live attendance camera endpoints.
// At most one session runs at a time since there is a single device.
type CameraHandler struct {
	open      SourceOpener
	known     KnownProvider
	processor FrameProcessor
	quality   int

	mu       sync.Mutex
	session  *CameraSession
	starting bool
}

// NewCameraHandler creates a new camera handler.
func NewCameraHandler(open SourceOpener, known KnownProvider, processor FrameProcessor, quality int) *CameraHandler {
	if quality < 1 || quality > 100 {
		quality = constants.DefaultJPEGQuality
	}
	return &CameraHandler{
		open:      open,
		known:     known,
		processor: processor,
		quality:   quality,
	}
}

// current returns the latest session, running or not.
func (h *CameraHandler) current() *CameraSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Start opens the camera and starts the live loop
func (h *CameraHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.starting || (h.session != nil && h.session.GetStatus() == SessionStatusRunning) {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "camera is already running")
		return
	}
	h.starting = true
	prev := h.session
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.starting = false
		h.mu.Unlock()
	}()

	// The previous loop may still be releasing the device
	if prev != nil {
		select {
		case <-prev.Done():
		case <-r.Context().Done():
			return
		}
	}

	src, err := h.open()
	if err != nil {
		log.Printf("Failed to open camera: %v", err)
		respondError(w, http.StatusServiceUnavailable, msgCameraFailed)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := newCameraSession(uuid.New().String(), cancel)

	h.mu.Lock()
	h.session = session
	h.mu.Unlock()

	go h.run(ctx, session, src)

	respondJSON(w, http.StatusAccepted, session.Info())
}

// Status returns the state of the current or last session
func (h *CameraHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		respondJSON(w, http.StatusOK, CameraSessionInfo{Status: SessionStatusStopped})
		return
	}
	respondJSON(w, http.StatusOK, session.Info())
}

// Stop stops the live loop and releases the camera
func (h *CameraHandler) Stop(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		respondError(w, http.StatusNotFound, "camera is not running")
		return
	}

	session.Stop(r.Context())
	respondJSON(w, http.StatusOK, session.Info())
}

// Frame returns the latest annotated frame as JPEG
func (h *CameraHandler) Frame(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data := session.LatestFrame()
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Events streams session events via SSE
func (h *CameraHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func() SSESource {
			session := h.current()
			if session == nil {
				return nil
			}
			return session
		},
		func(source SSESource) any {
			return source.(*CameraSession).Info()
		},
	)
}

// Shutdown stops a running session and waits for the camera to be released.
func (h *CameraHandler) Shutdown(ctx context.Context) {
	if session := h.current(); session != nil {
		session.Stop(ctx)
	}
}

// run reads frames until the session is cancelled or the camera fails.
func (h *CameraHandler) run(ctx context.Context, session *CameraSession, src FrameSource) {
	defer close(session.done)
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("Failed to release camera: %v", err)
		}
	}()

	session.SendEvent(SessionEvent{Type: "started", Message: "Camera started"})

	for {
		if ctx.Err() != nil {
			return
		}

		img, err := src.Read()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Camera read failed: %v", err)
			h.fail(session, msgCameraFailed)
			return
		}

		known, err := h.known.Known()
		if err != nil {
			log.Printf("Failed to load reference faces: %v", err)
			h.fail(session, "Failed to load reference faces")
			return
		}

		result, err := h.processor.Process(img, known)
		if err != nil {
			log.Printf("Frame processing failed: %v", err)
			session.SendEvent(SessionEvent{Type: "error", Message: err.Error()})
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, result.Frame, &jpeg.Options{Quality: h.quality}); err != nil {
			log.Printf("Failed to encode frame: %v", err)
			continue
		}
		n := session.setFrame(buf.Bytes())

		for _, m := range result.Matches {
			if m.Added {
				log.Printf("Marked attendance for %s", sanitizeForLog(m.Identity))
				session.SendEvent(SessionEvent{
					Type:    "attendance",
					Message: "Marked attendance for " + m.Identity,
					Data:    m,
				})
			}
		}
		session.SendEvent(SessionEvent{
			Type: "frame",
			Data: map[string]any{
				"frame":   n,
				"matches": result.Matches,
				"at":      time.Now(),
			},
		})
	}
}

func (h *CameraHandler) fail(session *CameraSession, msg string) {
	if session.finish(SessionStatusFailed, msg) {
		session.SendEvent(SessionEvent{Type: "error", Message: msg})
	}
}
