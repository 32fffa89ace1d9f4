package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/facematch/mock"
	"github.com/kozaktomas/face-attendance/internal/frame"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var red = color.RGBA{R: 255, A: 255}

func newTestCameraHandler(t *testing.T, src *fakeSource) (*CameraHandler, *ledger.Ledger) {
	t.Helper()
	engine := mock.NewMockEngine()
	l := ledger.New(filepath.Join(t.TempDir(), "Attendance.csv"))
	processor := frame.NewProcessor(engine, l, 0.6, 4)
	known := staticKnown{{Identity: "alice", Descriptor: mock.ColorDescriptor(red)}}

	open := func() (FrameSource, error) { return src, nil }
	return NewCameraHandler(open, known, processor, 80), l
}

func decodeSession(t *testing.T, recorder *httptest.ResponseRecorder) CameraSessionInfo {
	t.Helper()
	var info CameraSessionInfo
	if err := json.Unmarshal(recorder.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return info
}

func TestCamera_StatusBeforeStart(t *testing.T) {
	h, _ := newTestCameraHandler(t, &fakeSource{})

	recorder := httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/camera", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if info := decodeSession(t, recorder); info.Status != SessionStatusStopped {
		t.Errorf("expected stopped, got %q", info.Status)
	}

	recorder = httptest.NewRecorder()
	h.Frame(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/camera/frame", nil))
	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}

	recorder = httptest.NewRecorder()
	h.Stop(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/camera", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestCamera_ReadFailureEndsSession(t *testing.T) {
	src := &fakeSource{img: mock.SolidImage(80, 80, red), failAfter: 3}
	h, l := newTestCameraHandler(t, src)

	recorder := httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, recorder.Code)
	}

	waitDone(t, h)

	if !src.isClosed() {
		t.Error("camera must be released when the loop ends")
	}

	recorder = httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/camera", nil))
	info := decodeSession(t, recorder)
	if info.Status != SessionStatusFailed || info.Error != "Failed to access camera" {
		t.Errorf("unexpected session %+v", info)
	}
	if info.Frames != 3 {
		t.Errorf("expected 3 frames, got %d", info.Frames)
	}

	// The last annotated frame stays available
	recorder = httptest.NewRecorder()
	h.Frame(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/camera/frame", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	if _, err := jpeg.Decode(bytes.NewReader(recorder.Body.Bytes())); err != nil {
		t.Errorf("frame is not a JPEG: %v", err)
	}

	// alice was seen in every frame but recorded once
	records, err := l.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 || records[0].Name != "alice" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestCamera_StartWhileRunning(t *testing.T) {
	src := &fakeSource{img: mock.SolidImage(40, 40, red)}
	h, _ := newTestCameraHandler(t, src)

	recorder := httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, recorder.Code)
	}

	recorder = httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	if recorder.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, recorder.Code)
	}

	recorder = httptest.NewRecorder()
	h.Stop(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/camera", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if info := decodeSession(t, recorder); info.Status != SessionStatusStopped {
		t.Errorf("expected stopped, got %q", info.Status)
	}

	waitDone(t, h)
	if !src.isClosed() {
		t.Error("camera must be released on stop")
	}

	// A new session can be started after stopping
	recorder = httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	if recorder.Code != http.StatusAccepted {
		t.Errorf("expected restart to succeed, got %d", recorder.Code)
	}
	h.Shutdown(t.Context())
}

func TestCamera_StartWaitsForReleaseWithoutBlocking(t *testing.T) {
	src := &fakeSource{img: mock.SolidImage(40, 40, red)}
	h, _ := newTestCameraHandler(t, src)

	// A stopped session whose loop has not released the device yet
	prev := newCameraSession("prev", nil)
	prev.finish(SessionStatusStopped, "")
	h.session = prev

	started := make(chan int)
	go func() {
		recorder := httptest.NewRecorder()
		h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
		started <- recorder.Code
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.Lock()
		pending := h.starting
		h.mu.Unlock()
		if pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Start did not begin")
		}
		time.Sleep(time.Millisecond)
	}

	statusDone := make(chan struct{})
	go func() {
		h.Status(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/camera", nil))
		close(statusDone)
	}()
	select {
	case <-statusDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Status blocked while Start waited for the previous session")
	}

	select {
	case code := <-started:
		t.Fatalf("Start returned %d before the previous session finished", code)
	default:
	}

	// A concurrent start is rejected while the first one is pending
	recorder := httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	if recorder.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, recorder.Code)
	}

	close(prev.done)
	select {
	case code := <-started:
		if code != http.StatusAccepted {
			t.Fatalf("expected status %d, got %d", http.StatusAccepted, code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not finish after the previous session was released")
	}
	h.Shutdown(t.Context())
}

func TestCamera_OpenFailure(t *testing.T) {
	processor := frame.NewProcessor(mock.NewMockEngine(), ledger.New(filepath.Join(t.TempDir(), "a.csv")), 0.6, 4)
	open := func() (FrameSource, error) { return nil, errors.New("no such device") }
	h := NewCameraHandler(open, staticKnown(nil), processor, 90)

	recorder := httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, recorder.Code)
	}
	if msg := decodeError(t, recorder); msg != "Failed to access camera" {
		t.Errorf("unexpected error %q", msg)
	}
	if h.current() != nil {
		t.Error("no session should be created")
	}
}

type failingKnown struct{}

func (failingKnown) Known() ([]facematch.Known, error) {
	return nil, errors.New("directory vanished")
}

func TestCamera_KnownFailureEndsSession(t *testing.T) {
	src := &fakeSource{img: mock.SolidImage(40, 40, red)}
	processor := frame.NewProcessor(mock.NewMockEngine(), ledger.New(filepath.Join(t.TempDir(), "a.csv")), 0.6, 4)
	h := NewCameraHandler(func() (FrameSource, error) { return src, nil }, failingKnown{}, processor, 90)

	h.Start(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	waitDone(t, h)

	if status := h.current().GetStatus(); status != SessionStatusFailed {
		t.Errorf("expected failed, got %q", status)
	}
	if !src.isClosed() {
		t.Error("camera must be released")
	}
}

func TestCamera_EventsOfFinishedSession(t *testing.T) {
	src := &fakeSource{img: mock.SolidImage(40, 40, red), failAfter: 1}
	h, _ := newTestCameraHandler(t, src)

	h.Start(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/camera", nil))
	waitDone(t, h)

	recorder := httptest.NewRecorder()
	h.Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/camera/events", nil))

	if ct := recorder.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	scanner := bufio.NewScanner(strings.NewReader(recorder.Body.String()))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) < 2 || lines[0] != "event: status" {
		t.Fatalf("unexpected stream %q", recorder.Body.String())
	}

	var info CameraSessionInfo
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &info); err != nil {
		t.Fatalf("failed to unmarshal status event: %v", err)
	}
	if info.Status != SessionStatusFailed {
		t.Errorf("expected failed, got %q", info.Status)
	}
}

func TestCamera_EventsWithoutSession(t *testing.T) {
	h, _ := newTestCameraHandler(t, &fakeSource{})

	recorder := httptest.NewRecorder()
	h.Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/camera/events", nil))

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestCameraSession_Listeners(t *testing.T) {
	session := newCameraSession("id", nil)
	ch := session.AddListener()

	session.SendEvent(SessionEvent{Type: "frame"})
	event := <-ch
	if event.Type != "frame" {
		t.Errorf("expected frame event, got %q", event.Type)
	}

	session.RemoveListener(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after removal")
	}

	// Sending without listeners must not block
	session.SendEvent(SessionEvent{Type: "frame"})
}

func TestCameraSession_FinishOnce(t *testing.T) {
	session := newCameraSession("id", nil)

	if !session.finish(SessionStatusFailed, "boom") {
		t.Fatal("first finish should succeed")
	}
	if session.finish(SessionStatusStopped, "") {
		t.Error("second finish should be ignored")
	}
	info := session.Info()
	if info.Status != SessionStatusFailed || info.Error != "boom" || info.StoppedAt == nil {
		t.Errorf("unexpected session %+v", info)
	}
}
