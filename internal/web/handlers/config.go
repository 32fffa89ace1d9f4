package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Tolerance       float64 `json:"tolerance"`
	DownscaleFactor int     `json:"downscale_factor"`
	CNN             bool    `json:"cnn"`
	CameraDevice    int     `json:"camera_device"`
	Notifications   bool    `json:"notifications"`
	NotifyTopic     string  `json:"notify_topic,omitempty"`
}

// Get returns the recognition settings shown in the UI.
// Storage paths and the broker address are not exposed.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Tolerance:       h.config.Recognition.Tolerance,
		DownscaleFactor: h.config.Recognition.DownscaleFactor,
		CNN:             h.config.Recognition.CNN,
		CameraDevice:    h.config.Camera.Device,
		Notifications:   h.config.MQTT.Enabled(),
	}
	if response.Notifications {
		response.NotifyTopic = h.config.MQTT.Topic
	}

	respondJSON(w, http.StatusOK, response)
}
