package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/frame"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
	"github.com/kozaktomas/face-attendance/internal/refstore"
	"github.com/kozaktomas/face-attendance/internal/registration"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.
The browser UI shows the live annotated webcam feed and the attendance records,
and lets you register new people with a photo.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// newLedger creates the attendance ledger, publishing new records over MQTT when a broker is configured.
// The returned cleanup disconnects from the broker.
func newLedger(cfg *config.Config) (*ledger.Ledger, func()) {
	if !cfg.MQTT.Enabled() {
		return ledger.New(cfg.Storage.LedgerFile), func() {}
	}

	notifier, err := notify.Connect(cfg.MQTT.Broker, cfg.MQTT.Topic)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		fmt.Printf("Attendance records will not be published\n")
		return ledger.New(cfg.Storage.LedgerFile), func() {}
	}
	fmt.Printf("Publishing attendance records to %s\n", cfg.MQTT.Topic)
	return ledger.New(cfg.Storage.LedgerFile, ledger.WithNotifier(notifier)), notifier.Close
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Printf("Loading face models from %s...\n", cfg.Recognition.ModelsDir)
	engine, err := recognizer.New(cfg.Recognition.ModelsDir, cfg.Recognition.CNN, cfg.Recognition.JPEGQuality)
	if err != nil {
		return err
	}
	defer engine.Close()

	store := refstore.NewStore(cfg.Storage.ImagesDir, engine)
	if err := store.EnsureDir(); err != nil {
		return err
	}

	// Warm the cache so the first camera frame does not pay for encoding
	known, err := store.Known()
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d reference faces from %s\n", len(known), store.Dir())

	l, closeNotifier := newLedger(cfg)
	defer closeNotifier()

	deps := web.Deps{
		Store:     store,
		Ledger:    l,
		Registrar: registration.NewRegistrar(store, cfg.Recognition.JPEGQuality),
		Processor: frame.NewProcessor(engine, l, cfg.Recognition.Tolerance, cfg.Recognition.DownscaleFactor),
		OpenCamera: func() (handlers.FrameSource, error) {
			dev, err := camera.Open(cfg.Camera.Device)
			if err != nil {
				return nil, err
			}
			return dev, nil
		},
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, deps, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
