package handlers

import (
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/facematch/mock"
	"github.com/kozaktomas/face-attendance/internal/refstore"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

func newTestPeopleHandler(t *testing.T) (*PeopleHandler, string) {
	t.Helper()
	dir := t.TempDir()
	store := refstore.NewStore(dir, mock.NewMockEngine())
	return NewPeopleHandler(store, registration.NewRegistrar(store, 90)), dir
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return result["error"]
}

func TestPeopleRegister_Success(t *testing.T) {
	h, dir := newTestPeopleHandler(t)
	photo := mock.PNG(mock.SolidImage(16, 16, color.RGBA{R: 255, A: 255}))

	recorder := httptest.NewRecorder()
	h.Register(recorder, multipartRequest(t, "Jane_Doe!", photo))

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, recorder.Code, recorder.Body.String())
	}

	var result RegisterResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	expectedPath := filepath.Join(dir, "jane_doe.jpg")
	if result.Identity != "jane_doe" || result.Path != expectedPath {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Message != "Saved: "+expectedPath {
		t.Errorf("unexpected message %q", result.Message)
	}
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("photo not saved: %v", err)
	}

	// The new person is listed right away
	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/people", nil))

	var people PeopleResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &people); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if people.Count != 1 || people.People[0] != "jane_doe" {
		t.Errorf("unexpected people %+v", people)
	}
}

func TestPeopleRegister_Errors(t *testing.T) {
	photo := mock.PNG(mock.SolidImage(16, 16, color.RGBA{G: 255, A: 255}))

	tests := []struct {
		name         string
		person       string
		photo        []byte
		expectedCode int
		expectedMsg  string
	}{
		{
			name:         "missing photo",
			person:       "Jane",
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "Please capture a photo first.",
		},
		{
			name:         "blank name",
			person:       "  ",
			photo:        photo,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "Please enter a name.",
		},
		{
			name:         "invalid name",
			person:       "???",
			photo:        photo,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "Name must contain at least one letter or digit.",
		},
		{
			name:         "invalid image",
			person:       "Jane",
			photo:        []byte("garbage"),
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "The captured photo is not a valid image.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, dir := newTestPeopleHandler(t)

			recorder := httptest.NewRecorder()
			h.Register(recorder, multipartRequest(t, tt.person, tt.photo))

			if recorder.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, recorder.Code)
			}
			if msg := decodeError(t, recorder); msg != tt.expectedMsg {
				t.Errorf("expected error %q, got %q", tt.expectedMsg, msg)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("expected no files written, got %d", len(entries))
			}
		})
	}
}

func TestPeopleRegister_Duplicate(t *testing.T) {
	h, _ := newTestPeopleHandler(t)
	photo := mock.PNG(mock.SolidImage(16, 16, color.RGBA{B: 255, A: 255}))

	recorder := httptest.NewRecorder()
	h.Register(recorder, multipartRequest(t, "Jane Doe", photo))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected first registration to succeed, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	h.Register(recorder, multipartRequest(t, "jane doe", photo))

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, recorder.Code)
	}
	if msg := decodeError(t, recorder); msg != "Name 'jane_doe' is already registered!" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestPeopleRegister_NotMultipart(t *testing.T) {
	h, _ := newTestPeopleHandler(t)

	recorder := httptest.NewRecorder()
	h.Register(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/people", nil))

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

type failingLister struct{}

func (failingLister) Identities() ([]string, error) {
	return nil, errors.New("permission denied")
}

func TestPeopleList_Error(t *testing.T) {
	h := NewPeopleHandler(failingLister{}, nil)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/people", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, recorder.Code)
	}
}

func TestRegistrationError_Unknown(t *testing.T) {
	status, msg := registrationError(errors.New("disk full"))
	if status != http.StatusInternalServerError || msg != "failed to save photo" {
		t.Errorf("registrationError() = %d, %q", status, msg)
	}
}
