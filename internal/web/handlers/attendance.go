package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// RecordsReader reads the attendance ledger.
type RecordsReader interface {
	Records() ([]ledger.Record, error)
}

// AttendanceHandler serves the attendance records table.
type AttendanceHandler struct {
	ledger RecordsReader
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(l RecordsReader) *AttendanceHandler {
	return &AttendanceHandler{ledger: l}
}

// AttendanceResponse is the records table.
type AttendanceResponse struct {
	Records []ledger.Record `json:"records"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
}

// List returns all attendance records
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.Records()
	if errors.Is(err, ledger.ErrNoRecords) {
		respondJSON(w, http.StatusOK, AttendanceResponse{
			Records: []ledger.Record{},
			Message: "No attendance records yet.",
		})
		return
	}
	if err != nil {
		log.Printf("Failed to read attendance file: %v", err)
		respondError(w, http.StatusInternalServerError, "Error reading attendance file: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, AttendanceResponse{
		Records: records,
		Count:   len(records),
	})
}
