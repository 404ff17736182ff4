package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/capture"
	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/overlay"
	"github.com/nvr-ai/go-yolo/pipeline"
	"github.com/nvr-ai/go-yolo/profiler"
	"github.com/nvr-ai/go-yolo/server"
)

func main() {
	var (
		configPath string
		modelName  string
		videoPath  string
		framesDir  string
		showWindow bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&modelName, "model", "", "Model to start with (overrides the configuration)")
	flag.StringVar(&videoPath, "video", "", "Read frames from a video file or stream URL instead of the camera")
	flag.StringVar(&framesDir, "frames", "", "Play a directory of still images (frame-N.jpg) in a loop instead of the camera")
	flag.BoolVar(&showWindow, "window", true, "Show the preview window (camera and video input only)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if modelName != "" {
		cfg.Active = model.Name(modelName)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, videoPath, framesDir, showWindow, log); err != nil {
		log.Fatal("yolo-live failed", "err", err)
	}
}

func run(cfg *config.Config, videoPath, framesDir string, showWindow bool, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	active, err := cfg.ActiveModel()
	if err != nil {
		return err
	}

	loader := func(m model.Config) (inference.Engine, error) {
		e, err := inference.NewONNXEngine(m, cfg.Engine, log)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	engine, err := loader(active)
	if err != nil {
		return err
	}

	var latest latestOutcome
	hub := server.NewHub()
	p, err := pipeline.New(active, engine,
		pipeline.WithLogger(log),
		pipeline.WithFilter(cfg.Filter()),
		pipeline.WithDecodeConfig(cfg.Decode.For),
		pipeline.WithLoader(loader, cfg.Models),
		pipeline.WithSink(hub),
		pipeline.WithSink(pipeline.SinkFunc(latest.set)),
	)
	if err != nil {
		_ = engine.Close()
		return err
	}
	defer p.Close()

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Addr, p, hub, log)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	if cfg.Profile.Enabled {
		prof := profiler.New(cfg.Profile.Options, log)
		prof.AddMetricsCollector(p.Stats())
		prof.Start(ctx)
		defer prof.Stop()
	}

	var (
		src     pipeline.Source
		preview <-chan gocv.Mat
	)
	if framesDir != "" {
		dir, err := capture.OpenDirectory(framesDir, true)
		if err != nil {
			return err
		}
		src = dir
		showWindow = false
	} else {
		capCfg := capture.Config{
			Device: cfg.Camera.DeviceID,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
		}
		if videoPath != "" {
			capCfg.Device = videoPath
		}
		cam, err := capture.Open(capCfg, log)
		if err != nil {
			return err
		}
		if showWindow {
			preview = cam.Preview()
		}
		src = cam
	}
	defer src.Close()

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, src)
	}()

	if !showWindow {
		select {
		case <-ctx.Done():
			_ = src.Close()
			return <-done
		case err := <-done:
			return err
		}
	}

	window := gocv.NewWindow("YOLO Live")
	defer window.Close()
	keys := keyBindings(cfg.Models)

	for {
		select {
		case <-ctx.Done():
			_ = src.Close()
			return <-done
		case err := <-done:
			return err
		case mat, ok := <-preview:
			if !ok {
				return <-done
			}
			if o, ok := latest.get(); ok && o.FrameSize.X == mat.Cols() && o.FrameSize.Y == mat.Rows() {
				overlay.Draw(&mat, o.Results, overlay.DefaultStyle)
			}
			window.IMShow(mat)
			_ = mat.Close()

			switch key := window.WaitKey(1); {
			case key == 'q' || key == 27:
				stop()
			case key == ' ':
				if p.Running() {
					p.Stop()
				} else if err := p.Start(); err != nil {
					log.Warn("cannot resume pipeline", "err", err)
				}
			default:
				if name, ok := keys[key]; ok {
					if err := p.Select(name); err != nil {
						log.Warn("model switch failed", "model", string(name), "err", err)
					}
				}
			}
		}
	}
}

// keyBindings maps the digit keys 1..9 onto the configured models.
func keyBindings(list []model.Config) map[int]model.Name {
	keys := make(map[int]model.Name, len(list))
	for i, m := range list {
		if i == 9 {
			break
		}
		keys['1'+i] = m.Name
	}
	return keys
}

// latestOutcome holds the outcome the preview draws.
type latestOutcome struct {
	mu sync.Mutex
	o  pipeline.Outcome
	ok bool
}

func (l *latestOutcome) set(o pipeline.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.o, l.ok = o, true
}

func (l *latestOutcome) get() (pipeline.Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.o, l.ok
}
