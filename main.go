package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/thushan/warren/internal/app"
	"github.com/thushan/warren/internal/config"
	"github.com/thushan/warren/internal/logger"
	"github.com/thushan/warren/internal/util"
	"github.com/thushan/warren/internal/version"
	"github.com/thushan/warren/pkg/container"
	"github.com/thushan/warren/pkg/format"
	"github.com/thushan/warren/pkg/nerdstats"
	"github.com/thushan/warren/pkg/profiler"
)

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	} else {
		version.PrintVersionInfo(false, vlog)
	}

	if getEnvBoolOrDefault("WARREN_PROFILER", false) {
		profiler.InitialiseProfiler()
	}

	// The reload callback is bound late: the application doesn't exist yet
	// when the watch is registered.
	var application *app.Application
	cfg, err := config.Load(func() {
		if application != nil {
			application.ReloadSettings()
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// setup: logging with styled logger
	lcfg := buildLoggerConfig(cfg)
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// Set as default logger
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	// setup: graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, err = app.New(cfg, styledLogger)
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to create application", "error", err)
	}

	if err := application.Start(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "Failed to start application", "error", err)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	if cfg.Engineering.ShowNerdStats {
		reportProcessStats(styledLogger, startTime)
	}

	styledLogger.Info("Warren has shutdown")
}

func reportProcessStats(logger *logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	logger.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", int64(stats.Mallocs)-int64(stats.Frees),
	)

	if stats.NumGC > 0 {
		logger.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	logger.Info("Goroutine Stats",
		"num_goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"num_cgo_calls", stats.NumCgoCall,
	)

	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)
}

// buildLoggerConfig derives logger settings from the loaded config with
// environment overrides for the file-output knobs.
func buildLoggerConfig(cfg *config.Config) *logger.Config {
	pretty := util.ShouldUseColors() && !container.IsContainerised()
	return &logger.Config{
		Level:      cfg.Logging.Level,
		PrettyLogs: pretty,
		FileOutput: getEnvBoolOrDefault("WARREN_FILE_OUTPUT", cfg.Logging.Output == "file"),
		LogDir:     getEnvOrDefault("WARREN_LOG_DIR", "./logs"),
		MaxSize:    getEnvIntOrDefault("WARREN_MAX_SIZE", 100),
		MaxBackups: getEnvIntOrDefault("WARREN_MAX_BACKUPS", 5),
		MaxAge:     getEnvIntOrDefault("WARREN_MAX_AGE", 30),
		Theme:      getEnvOrDefault("WARREN_THEME", "default"),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}
