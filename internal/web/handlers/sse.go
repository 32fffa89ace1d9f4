package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// isSessionTerminal returns true if the session status is a terminal state
func isSessionTerminal(status SessionStatus) bool {
	return status == SessionStatusStopped || status == SessionStatusFailed
}

// setupSSEConnection finds the source and sets up SSE headers.
// Returns the source, flusher, and true on success. On failure, writes an error response and returns zero values with false.
func setupSSEConnection(w http.ResponseWriter, lookup func() SSESource) (SSESource, http.Flusher, bool) {
	source := lookup()
	if source == nil {
		respondError(w, http.StatusNotFound, "camera is not running")
		return nil, nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return source, flusher, true
}

// streamSSEEvents streams events from an SSESource until it ends, the client
// disconnects, or the event channel closes.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, lookup func() SSESource, getInitialData func(SSESource) any) {
	source, flusher, ok := setupSSEConnection(w, lookup)
	if !ok {
		return
	}

	eventCh := source.AddListener()
	defer source.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", getInitialData(source))
	if isSessionTerminal(source.GetStatus()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if isSessionTerminal(source.GetStatus()) {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
