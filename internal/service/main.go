package service

import (
	"context"
	"fmt"
	"time"

	"github.com/leadme/daf/internal/audiodev/wavfile"
	"github.com/leadme/daf/internal/conf"
	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/telemetry"
)

const sentryFlushTimeout = 2 * time.Second

// NewLogger builds the central logger from the logging settings. Debug mode
// lowers the default and console levels to debug.
func NewLogger(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}
	return logger.NewCentralLogger(&cfg)
}

// Main is the daemon entry point shared by the serve and run commands. It
// wraps New and Run with logging and error reporting setup.
func Main(ctx context.Context, settings *conf.Settings, opts Options) error {
	central, err := NewLogger(settings)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	defer func() { _ = central.Close() }()
	log := central.Module("dafd")

	platform := telemetry.CollectPlatformInfo()
	log.Info("platform details",
		logger.String("os", platform.OS),
		logger.String("arch", platform.Architecture),
		logger.String("platform", platform.Platform),
		logger.String("platform_version", platform.PlatformVersion),
		logger.Int("num_cpu", platform.NumCPU))

	if err := telemetry.InitSentry(settings, log.Module("telemetry")); err != nil {
		log.Warn("error reporting disabled", logger.Error(err))
	}
	defer telemetry.Close(sentryFlushTimeout)

	opts.Logger = log
	svc, err := New(settings, opts)
	if err != nil {
		log.Error("failed to assemble service", logger.Error(err))
		return err
	}

	return svc.Run(ctx)
}

// Render runs the delay line over a WAV file and writes the delayed signal
// to outputPath. The output is longer than the input by the delay so the
// delayed tail is not cut off.
func Render(ctx context.Context, settings *conf.Settings, inputPath, outputPath string, log logger.Logger) error {
	if log == nil {
		log = logger.NewNopLogger()
	}

	cfg := daf.NewAudioConfig(settings.DAF.SampleRate, settings.DAF.DelayMs)
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend := wavfile.New(wavfile.Config{
		InputPath:   inputPath,
		OutputPath:  outputPath,
		TailPadding: cfg.CapacityBytes(),
		Logger:      log.Module("wavfile"),
	})
	ctrl := daf.NewController(backend, daf.Options{
		JoinTimeout: settings.DAF.JoinTimeout,
		Logger:      log.Module("daf"),
	})

	if err := ctrl.Start(cfg); err != nil {
		return err
	}

	start := time.Now()
	select {
	case <-backend.Exhausted():
	case <-ctx.Done():
		ctrl.Stop()
		return fmt.Errorf("render of %s cancelled: %w", inputPath, ctx.Err())
	}
	ctrl.Stop()

	log.Info("render complete",
		logger.String("input", inputPath),
		logger.String("output", outputPath),
		logger.Int("delay_ms", cfg.DelayMs),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}
