package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nozyme-tap/internal/capture"
	"nozyme-tap/internal/channel"
	"nozyme-tap/internal/classify"
	"nozyme-tap/internal/config"
	"nozyme-tap/internal/heartbeat"
	"nozyme-tap/internal/hopper"
	"nozyme-tap/internal/logger"
	"nozyme-tap/internal/netlink"
	"nozyme-tap/internal/sink"
	"nozyme-tap/internal/system"
	"nozyme-tap/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "/etc/nozyme/tap.yaml", "Path to configuration file")
	flag.Parse()

	cfgManager := config.NewManager(*configPath)
	if err := cfgManager.Load(); err != nil {
		log.Printf("[WARN] Failed to load config: %v\nAttempting to create a default config...", err)
		configDir := filepath.Dir(*configPath)
		if mkErr := os.MkdirAll(configDir, 0755); mkErr != nil {
			log.Fatalf("Failed to create config directory %s: %v", configDir, mkErr)
		}
		if saveErr := cfgManager.Save(); saveErr != nil {
			log.Fatalf("Failed to create default config: %v", saveErr)
		}
		log.Printf("[INFO] Default config created at %s", *configPath)
	}

	cfg := cfgManager.Get()

	if err := logger.Init(cfg.LogFilePath, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogLevel == "debug"); err != nil {
		log.Printf("[WARN] Failed to initialize file logging: %v (continuing with stdout only)", err)
		if err := logger.Init("", 0, 0, cfg.LogLevel == "debug"); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}
	defer logger.Get().Close()

	logger.Printf("Starting nozyme-tap %s on %s (%s)", cfg.TapUUID, cfg.Interface, system.GetOSInfo())

	if tshark := system.CheckTshark(cfg.TsharkPath); !tshark.Installed {
		logger.Fatal("tshark not found; install it with: %s", tshark.InstallCommand)
	}
	if iw := system.CheckIW(); !iw.Installed {
		logger.Warn("iw not found; monitor-mode and channel-retune fallback paths will be unavailable")
	}

	patterns, err := classify.LoadPatternSet(cfg.PatternFilePath)
	if err != nil {
		logger.Fatal("Failed to load pattern set: %v", err)
	}

	iface := cfg.Interface
	if cfg.AutoMonitor {
		monIface, err := capture.EnsureMonitorMode(iface)
		if err != nil {
			logger.Fatal("Failed to enable monitor mode on %s: %v", iface, err)
		}
		iface = monIface
	}

	driver, err := netlink.Open()
	if err != nil {
		logger.Warn("netlink driver unavailable, falling back to `iw` subprocess for every retune: %v", err)
		driver = nil
	}

	tuner := newRadioTuner(iface, driver, channel.NANDiscoveryChannel)

	var snk sink.Sink
	var mangosSnk *sink.MangosSink
	if cfg.NodeHost != "" {
		endpoint := fmt.Sprintf("tcp://%s:%d", cfg.NodeHost, cfg.NodePort)
		mangosSnk, err = sink.NewMangosSink(endpoint, cfg.SinkBufferSize)
		if err != nil {
			logger.Warn("failed to construct network sink, buffering locally only: %v", err)
			snk = sink.NewBufferSink(cfg.SinkBufferSize)
		} else {
			if err := mangosSnk.Start(); err != nil {
				logger.Warn("sink dial to %s failed, will retry in the background: %v", endpoint, err)
			}
			snk = mangosSnk
		}
	} else {
		snk = sink.NewBufferSink(cfg.SinkBufferSize)
	}

	hop := hopper.New(tuner, cfg.ChannelsByBand(), hopper.Config{
		DwellMS:               cfg.ChannelDwellMS,
		ActiveDwellMultiplier: cfg.ActiveDwellMultiplier,
		ActivityTimeoutS:      cfg.ActivityTimeoutS,
		IdleScanIntervalS:     cfg.IdleScanIntervalS,
	})
	classifier := classify.New(patterns, hop.ReportActivity)
	hb := heartbeat.New(nil, hop, snk, cfg.HeartbeatIntervalS)

	capt := capture.New(iface, cfg.TsharkPath, func(line string) {
		env, ok := classifier.Classify(line)
		if !ok {
			return
		}
		hb.RecordFrame(time.Now())
		if err := snk.Publish(string(env.Kind), envelopePayload(env)); err != nil {
			logger.Warn("sink publish failed: %v", err)
		}
	})
	hb.SetCapture(capt)

	rootCtx, cancelRoot := context.WithCancel(context.Background())

	wd := watchdog.New(capt, tuner, snk, watchdog.Config{
		CheckIntervalS:         cfg.WatchdogCheckIntervalS,
		StarvationTimeoutS:     cfg.StarvationTimeoutS,
		RestartDelayS:          cfg.TsharkRestartDelayS,
		BufferWarnThreshold:    cfg.BufferWarnThreshold,
		MemoryPercentThreshold: cfg.MemoryPercentThreshold,
	}, nil, cancelRoot)

	if err := capt.Start(); err != nil {
		logger.Fatal("Failed to start tshark: %v", err)
	}

	hop.Start(rootCtx)
	go wd.Run(rootCtx)
	go hb.Run(rootCtx)

	logger.Printf("nozyme-tap running (interface=%s)", iface)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Println("Shutting down...")
	case <-rootCtx.Done():
		logger.Println("Shutting down (memory pressure)...")
	}

	cancelRoot()
	hop.Stop()
	_ = capt.Stop()
	if mangosSnk != nil {
		_ = mangosSnk.Stop()
	}
	if driver != nil {
		_ = driver.Close()
	}

	logger.Println("nozyme-tap stopped")
}

func envelopePayload(env classify.Envelope) map[string]any {
	payload := map[string]any{
		"source_mac": env.SourceMAC,
		"kind":       string(env.Kind),
	}
	if env.RSSIdBm != nil {
		payload["rssi_dbm"] = *env.RSSIdBm
	}
	if env.Channel != nil {
		payload["channel"] = *env.Channel
	}
	payload["raw"] = env.Raw
	return payload
}
