package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Web         WebConfig         `yaml:"-"`
}

type StorageConfig struct {
	ImagesDir  string `yaml:"images_dir"`  // one reference photo per person
	LedgerFile string `yaml:"ledger_file"` // Name,Date,Time CSV
}

type CameraConfig struct {
	Device int `yaml:"device"` // system camera index
}

type RecognitionConfig struct {
	ModelsDir       string  `yaml:"models_dir"`       // dlib models for go-face
	Tolerance       float64 `yaml:"tolerance"`        // max Euclidean distance for a match
	DownscaleFactor int     `yaml:"downscale_factor"` // live frames are shrunk by this factor before detection
	CNN             bool    `yaml:"cnn"`              // CNN detector instead of HOG (slower)
	JPEGQuality     int     `yaml:"jpeg_quality"`
}

type MQTTConfig struct {
	Broker string `yaml:"broker"` // e.g. tcp://localhost:1883, empty disables publishing
	Topic  string `yaml:"topic"`
}

type WebConfig struct {
	AllowedOrigins []string // CORS whitelist on top of localhost
}

// Enabled reports whether attendance records should be published.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float from the environment, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultVal
}

func envString(key string, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func Load() *Config {
	var defaults Config
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, so this only fires on a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg := &Config{
		Storage: StorageConfig{
			ImagesDir:  envString("IMAGES_DIR", defaults.Storage.ImagesDir),
			LedgerFile: envString("ATTENDANCE_CSV", defaults.Storage.LedgerFile),
		},
		Camera: CameraConfig{
			Device: envInt("CAMERA_DEVICE", defaults.Camera.Device),
		},
		Recognition: RecognitionConfig{
			ModelsDir:       envString("FACE_MODELS_DIR", defaults.Recognition.ModelsDir),
			Tolerance:       envFloat("FACE_TOLERANCE", defaults.Recognition.Tolerance),
			DownscaleFactor: envInt("FACE_DOWNSCALE", defaults.Recognition.DownscaleFactor),
			CNN:             envBool("FACE_DETECT_CNN", defaults.Recognition.CNN),
			JPEGQuality:     envInt("JPEG_QUALITY", defaults.Recognition.JPEGQuality),
		},
		MQTT: MQTTConfig{
			Broker: envString("MQTT_BROKER", defaults.MQTT.Broker),
			Topic:  envString("MQTT_TOPIC", defaults.MQTT.Topic),
		},
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
	if cfg.Recognition.DownscaleFactor < 1 {
		cfg.Recognition.DownscaleFactor = 1
	}
	if cfg.Recognition.JPEGQuality < 1 || cfg.Recognition.JPEGQuality > 100 {
		cfg.Recognition.JPEGQuality = defaults.Recognition.JPEGQuality
	}
	return cfg
}
