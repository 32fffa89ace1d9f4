package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

// IdentityLister lists registered people.
type IdentityLister interface {
	Identities() ([]string, error)
}

// Registerer saves a new reference photo.
type Registerer interface {
	Register(name string, capture []byte) (registration.Result, error)
}

// PeopleHandler handles listing and registering people.
type PeopleHandler struct {
	store     IdentityLister
	registrar Registerer
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(store IdentityLister, registrar Registerer) *PeopleHandler {
	return &PeopleHandler{
		store:     store,
		registrar: registrar,
	}
}

// PeopleResponse lists registered identities.
type PeopleResponse struct {
	People []string `json:"people"`
	Count  int      `json:"count"`
}

// RegisterResponse describes a saved reference photo.
type RegisterResponse struct {
	Identity string `json:"identity"`
	Path     string `json:"path"`
	Message  string `json:"message"`
}

// List returns the identities in the reference store
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.store.Identities()
	if err != nil {
		log.Printf("Failed to list people: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read reference photos")
		return
	}
	respondJSON(w, http.StatusOK, PeopleResponse{People: people, Count: len(people)})
}

// Register saves the uploaded photo under the given name.
// Expects a multipart form with a "name" field and a "photo" file.
func (h *PeopleHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	capture, err := readPhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.registrar.Register(r.FormValue("name"), capture)
	if err != nil {
		status, msg := registrationError(err)
		if status == http.StatusInternalServerError {
			log.Printf("Registration failed: %v", err)
		}
		respondError(w, status, msg)
		return
	}

	log.Printf("Registered %s at %s", sanitizeForLog(result.Identity), result.Path)
	respondJSON(w, http.StatusCreated, RegisterResponse{
		Identity: result.Identity,
		Path:     result.Path,
		Message:  "Saved: " + result.Path,
	})
}

// readPhoto returns the uploaded photo bytes, or nil when no photo was sent.
func readPhoto(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	return data, nil
}

// registrationError maps a registration error to a status code and a user-facing message.
func registrationError(err error) (int, string) {
	var dupErr *registration.DuplicateError
	switch {
	case errors.Is(err, registration.ErrMissingCapture):
		return http.StatusBadRequest, "Please capture a photo first."
	case errors.Is(err, registration.ErrBlankName):
		return http.StatusBadRequest, "Please enter a name."
	case errors.Is(err, registration.ErrInvalidName):
		return http.StatusBadRequest, "Name must contain at least one letter or digit."
	case errors.As(err, &dupErr):
		return http.StatusConflict, dupErr.Error()
	case errors.Is(err, registration.ErrInvalidImage):
		return http.StatusBadRequest, "The captured photo is not a valid image."
	default:
		return http.StatusInternalServerError, "failed to save photo"
	}
}
