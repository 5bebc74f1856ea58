package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/smazurov/fbmirror/cmd"
	"github.com/smazurov/fbmirror/internal/api"
	"github.com/smazurov/fbmirror/internal/config"
	"github.com/smazurov/fbmirror/internal/device"
	"github.com/smazurov/fbmirror/internal/events"
	"github.com/smazurov/fbmirror/internal/logging"
	"github.com/smazurov/fbmirror/internal/systemd"
	"github.com/smazurov/fbmirror/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Device settings
	ADBPath          string `help:"Path to the adb executable" default:"adb" toml:"device.adb_path" env:"DEVICE_ADB_PATH"`
	Serial           string `help:"Device serial, empty selects the only attached device" short:"s" toml:"device.serial" env:"DEVICE_SERIAL"`
	CommandTimeoutMs int    `help:"Timeout for each bridge command in milliseconds" default:"30000" toml:"device.command_timeout_ms" env:"DEVICE_COMMAND_TIMEOUT_MS"`
	WakeOnProbe      bool   `help:"Wake the screen when a device connects" default:"true" toml:"device.wake_on_probe" env:"DEVICE_WAKE_ON_PROBE"`

	// Capture settings
	CaptureCommand     string `help:"Remote capture utility" default:"screencap" toml:"capture.command" env:"CAPTURE_COMMAND"`
	CaptureCompression string `help:"Capture compression (auto, external, builtin, off)" default:"auto" toml:"capture.compression" env:"CAPTURE_COMPRESSION"`
	CaptureTool        string `help:"Host decompression tool" default:"minigzip" toml:"capture.decompress_tool" env:"CAPTURE_DECOMPRESS_TOOL"`
	CaptureScratch     string `help:"Scratch file for the decompression tool" toml:"capture.scratch_file" env:"CAPTURE_SCRATCH_FILE"`
	CaptureOffset      int    `help:"Leading bytes dropped from every capture" default:"0" toml:"capture.offset" env:"CAPTURE_OFFSET"`
	CaptureFixCRLF     bool   `help:"Undo CRLF translation of capture output" default:"false" toml:"capture.fix_crlf" env:"CAPTURE_FIX_CRLF"`

	// Frame stream settings
	FrameWidth   int `help:"Maximum width of frames pushed to websocket clients, 0 for native" default:"0" toml:"frames.max_width" env:"FRAMES_MAX_WIDTH"`
	FrameQuality int `help:"JPEG quality of pushed frames" default:"80" toml:"frames.quality" env:"FRAMES_QUALITY"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`
	CORSOrigin   string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingADB     string `help:"Bridge logging level" default:"info" toml:"logging.adb" env:"LOGGING_ADB"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingPower   string `help:"Power key logging level" default:"info" toml:"logging.power" env:"LOGGING_POWER"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) settings() cmd.Settings {
	return cmd.Settings{
		ADBPath:        o.ADBPath,
		Serial:         o.Serial,
		CommandTimeout: time.Duration(o.CommandTimeoutMs) * time.Millisecond,
		CaptureCommand: o.CaptureCommand,
		Compression:    o.CaptureCompression,
		DecompressTool: o.CaptureTool,
		ScratchFile:    o.CaptureScratch,
		CaptureOffset:  o.CaptureOffset,
		FixCRLF:        o.CaptureFixCRLF,
	}
}

func main() {
	var cli humacli.CLI
	current := &Options{}

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		current = opts

		// Load configuration; flags set on the command line win
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Any [logging] key is a module level; named options override the file
		logCfg := config.LoadLoggingConfig(opts.Config)
		logCfg.Level = opts.LoggingLevel
		logCfg.Format = opts.LoggingFormat
		for module, level := range map[string]string{
			"session": opts.LoggingSession,
			"adb":     opts.LoggingADB,
			"process": opts.LoggingADB,
			"capture": opts.LoggingCapture,
			"power":   opts.LoggingPower,
			"api":     opts.LoggingAPI,
			"http":    opts.LoggingAPI,
		} {
			logCfg.Modules[module] = level
		}
		logging.Initialize(logCfg)

		logger := logging.GetLogger("main")

		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryToEvent(entry))
		})

		var (
			session *device.Session
			watcher *config.Watcher[config.SessionTuning]
			server  *api.Server
			cancel  context.CancelFunc
		)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		hooks.OnStart(func() {
			logger.Info("Starting fbmirror", "version", version.Get().String())

			stack, err := cmd.NewStack(opts.settings())
			if err != nil {
				logger.Error("Invalid device settings", "error", err)
				os.Exit(1)
			}

			sessOpts := device.DefaultOptions()
			sessOpts.Serial = opts.Serial
			sessOpts.WakeOnProbe = opts.WakeOnProbe

			tuning, tuningErr := config.LoadSessionTuning(opts.Config)
			if tuningErr == nil {
				applyTuning(&sessOpts, tuning)
			} else if !os.IsNotExist(tuningErr) {
				logger.Warn("Failed to load session tuning", "error", tuningErr)
			}

			session = device.NewSession(stack.Bridge, stack.Decoder, stack.Power, eventBus, sessOpts, logging.GetLogger("session"))
			if tuning.Paused {
				session.Pause()
			}

			watcher = config.NewConfigWatcher(opts.Config, config.LoadSessionTuning, logging.GetLogger("config"))
			watcher.OnReload(func(t config.SessionTuning) {
				ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if applyErr := session.ApplyTuning(ctx, t.DeviceTuning()); applyErr != nil {
					logger.Warn("Failed to apply session tuning", "error", applyErr)
				}
				if t.Paused {
					session.Pause()
				} else {
					session.Resume()
				}
			})
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher disabled", "error", watchErr)
			}

			eventBus.Subscribe(func(e events.ConnectedEvent) {
				notifier.Status(fmt.Sprintf("Mirroring %s %dx%d %s", e.Serial, e.Width, e.Height, e.Format))
			})
			eventBus.Subscribe(func(events.DisconnectedEvent) {
				notifier.Status("Waiting for device")
			})

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				if runErr := session.Run(ctx); runErr != nil {
					logger.Error("Session stopped", "error", runErr)
				}
			}()

			server = api.NewServer(&api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				Session:           session,
				EventBus:          eventBus,
				PrometheusHandler: promhttp.Handler(),
				CORSOrigin:        opts.CORSOrigin,
				FrameWidth:        opts.FrameWidth,
				FrameQuality:      opts.FrameQuality,
				OnListening: func() {
					notifier.Ready()
					notifier.Status("Waiting for device")
				},
			})

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
			if session != nil {
				session.Stop()
				select {
				case <-session.Done():
				case <-time.After(5 * time.Second):
					logger.Warn("Session did not stop in time")
				}
			}
			if cancel != nil {
				cancel()
			}
		})
	})

	settings := func() cmd.Settings { return current.settings() }
	root := cli.Root()
	root.Use = "fbmirror"
	root.Short = "Mirror and control an adb-attached device screen"
	root.AddCommand(
		cmd.CreateProbeCmd(settings),
		cmd.CreateSnapshotCmd(settings),
		cmd.CreateWakeCmd(settings),
		cmd.CreateVersionCmd(),
	)
	root.SilenceUsage = true
	root.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	cli.Run()
}

// applyTuning overlays non-zero values from the [session] table onto startup options.
func applyTuning(o *device.Options, t config.SessionTuning) {
	if t.FastDelay > 0 {
		o.FastDelay = t.FastDelay
	}
	if t.DelayStep > 0 {
		o.DelayStep = t.DelayStep
	}
	if t.MaxDelay > 0 {
		o.MaxDelay = t.MaxDelay
	}
	if t.ScreenOffDelay > 0 {
		o.ScreenOffDelay = t.ScreenOffDelay
	}
	if t.BacklightPollInterval > 0 {
		o.BacklightPollInterval = t.BacklightPollInterval
	}
}
