package handlers

import (
	"bytes"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var errDeviceGone = errors.New("device gone")

// fakeSource is a camera returning img until failAfter frames were read (0 = never fails).
type fakeSource struct {
	img       image.Image
	failAfter int

	mu     sync.Mutex
	reads  int
	closed bool
}

func (s *fakeSource) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && s.reads >= s.failAfter {
		return nil, errDeviceGone
	}
	s.reads++
	time.Sleep(time.Millisecond)
	return s.img, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type staticKnown []facematch.Known

func (k staticKnown) Known() ([]facematch.Known, error) {
	return k, nil
}

// waitDone waits for the current camera session loop to exit.
func waitDone(t *testing.T, h *CameraHandler) {
	t.Helper()
	session := h.current()
	if session == nil {
		t.Fatal("no camera session")
	}
	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("camera session did not finish")
	}
}

// multipartRequest builds a registration request. A nil photo omits the file part.
func multipartRequest(t *testing.T, name string, photo []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", name); err != nil {
		t.Fatalf("failed to write name field: %v", err)
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "capture.png")
		if err != nil {
			t.Fatalf("failed to create photo part: %v", err)
		}
		part.Write(photo)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/people", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
