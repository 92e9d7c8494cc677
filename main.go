package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/asset"
	"PatternBoard/internal/composite"
	"PatternBoard/internal/config"
	"PatternBoard/internal/draw"
	"PatternBoard/internal/history"
	"PatternBoard/internal/net"
	"PatternBoard/internal/pattern"
	"PatternBoard/internal/state"
	"PatternBoard/internal/store"
	"PatternBoard/internal/ui"
)

func main() {
	configPath := flag.String("config", "patternboard.toml", "configuration file")
	outline := flag.String("outline", "", "SVG outline of the pattern piece to draw on")
	background := flag.String("background", "", "image shown beneath the compositing surface")
	follow := flag.String("follow", "", "relay URL to follow, e.g. ws://host:8888/ws")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	installLogger(cfg.LogLevel)
	log := applog.Component("main")

	files, err := store.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		log.Error("Failed to open store", "dir", cfg.Storage.Dir, "err", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assets := asset.NewLoader(files, "")
	bus := state.NewBus()
	drawing := draw.NewEngine(cfg.Drawing, bus)
	compositing := composite.NewEngine(cfg.Composite, assets, files, bus)
	session := &ui.Session{
		Project:   cfg.Storage.Project,
		Pattern:   "untitled",
		Draw:      drawing,
		Composite: compositing,
		Pipeline:  history.NewPipeline(files, assets, cfg.Drawing.Freehand, cfg.Storage.HistoryLimit, bus),
		Assets:    assets,
		Bus:       bus,
		DPI:       cfg.Export.DPI,
	}

	if *outline != "" {
		session.Pattern = strings.TrimSuffix(filepath.Base(*outline), filepath.Ext(*outline))
		svg, err := assets.Fetch(ctx, *outline)
		if err != nil {
			log.Error("Failed to read outline", "path", *outline, "err", err)
		}
		region := pattern.ExtractBytes(svg, float32(cfg.Drawing.Width), float32(cfg.Drawing.Height))
		if region.Empty() {
			log.Warn("Outline has no usable geometry, drawing is disabled", "path", *outline)
		}
		drawing.SetRegion(region)
	}
	if *background != "" {
		img, err := asset.LoadImage(ctx, assets, *background)
		if err != nil {
			log.Warn("Failed to load background", "path", *background, "err", err)
		} else {
			compositing.SetBackground(img)
		}
	}

	switch {
	case *follow != "":
		client, err := net.Dial(ctx, *follow, bus)
		if err != nil {
			log.Error("Failed to follow relay", "url", *follow, "err", err)
		} else {
			defer client.Close()
		}
	case cfg.Relay.Enabled:
		relay := net.NewRelay(bus)
		addr, err := net.Serve(ctx, relay, cfg.Relay.Port)
		if err != nil {
			log.Error("Failed to start relay", "err", err)
			break
		}
		session.ShareURL = net.ShareURL(cfg.Relay.Port)
		log.Info("Relay ready", "addr", addr.String(), "share", session.ShareURL)
		if cfg.Relay.Advertise {
			server, err := net.Advertise(cfg.Relay.Port)
			if err != nil {
				log.Warn("mDNS advertisement failed", "err", err)
			} else {
				defer server.Shutdown()
			}
		}
	}

	log.Info("Starting PatternBoard", "project", session.Project, "pattern", session.Pattern)
	ui.RunApp(session)
}

func installLogger(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	applog.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
