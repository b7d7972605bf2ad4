// Command absorb shows a live camera feed or an image either as is or with
// its colors inverted, the colors the scene absorbs rather than reflects.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"fyne.io/fyne/v2/app"
	_ "github.com/pion/mediadevices/pkg/driver/camera"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/capture"
	"github.com/soypat/absorb/filters"
	"github.com/soypat/absorb/internal/config"
	"github.com/soypat/absorb/loop"
	"github.com/soypat/absorb/render"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "absorb:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		flagConfig = flag.String("config", "", "config file path (default user config dir)")
		flagDemo   = flag.Bool("demo", false, "use a synthetic camera")
		flagGPU    = flag.Bool("gpu", false, "invert colors on the GPU")
		flagLog    = flag.String("log", "", "log level override: debug, info, warn, error")
		flagImage  = flag.String("image", "", "image file to open at startup")
		flagURL    = flag.String("url", "", "image URL to open at startup")
		flagOrigin = flag.String("origin", "", "origin whose images may be transformed when loaded by URL")
	)
	flag.Parse()

	cfgPath := *flagConfig
	if cfgPath == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return err
	}
	if *flagDemo {
		cfg.Camera.Driver = config.DriverFake
	}
	if *flagGPU {
		cfg.Display.GPU = true
	}
	if *flagLog != "" {
		cfg.LogLevel = *flagLog
	}
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	absorb.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	log := absorb.Logger()

	driver, err := newDriver(cfg.Camera.Driver)
	if err != nil {
		return err
	}
	transformer, release := newTransformer(cfg.Display.GPU)
	defer release()

	var origin *url.URL
	if *flagOrigin != "" {
		origin, err = url.Parse(*flagOrigin)
		if err != nil {
			return fmt.Errorf("parsing origin: %w", err)
		}
	}
	var startImage []byte
	if *flagImage != "" {
		startImage, err = os.ReadFile(*flagImage)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lp := loop.New(cfg.Display.RefreshRate)
	loopDone := make(chan error, 1)
	go func() { loopDone <- lp.Run(ctx) }()

	a := app.NewWithID("io.github.soypat.absorb")
	v := newViewer(a, lp, cfg, cfgPath, driver, render.NewEngine(transformer))
	lp.Post(func() {
		switch {
		case startImage != nil:
			v.sess.LoadImage(startImage)
		case *flagURL != "":
			v.sess.LoadURL(ctx, nil, *flagURL, origin)
		}
	})
	log.Info("absorb started", slog.String("driver", cfg.Camera.Driver), slog.Bool("gpu", cfg.Display.GPU), slog.String("config", cfgPath))
	v.win.ShowAndRun()

	// Release the camera on the loop before stopping it.
	closed := make(chan struct{})
	lp.Post(func() {
		v.sess.Close()
		close(closed)
	})
	<-closed
	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDriver(name string) (capture.Driver, error) {
	switch strings.ToLower(name) {
	case config.DriverMediaDevices:
		return capture.MediaDevices{}, nil
	case config.DriverGoCV:
		return gocvDriver()
	case config.DriverV4L2:
		return v4l2Driver()
	case config.DriverFake:
		return &capture.Fake{}, nil
	}
	return nil, fmt.Errorf("unknown camera driver %q", name)
}

// newTransformer returns the CPU inversion, or the GPU inversion falling
// back to the CPU when gpu is set and a device is available.
func newTransformer(gpu bool) (render.Transformer, func()) {
	cpu := render.NewInvertTransformer()
	if !gpu {
		return cpu, func() {}
	}
	log := absorb.Logger()
	dev, err := filters.OpenGPU()
	if err != nil {
		log.Warn("gpu unavailable, using cpu", slog.Any("err", err))
		return cpu, func() {}
	}
	f, err := filters.NewInvertGPU(dev.Device, dev.Queue)
	if err != nil {
		dev.Release()
		log.Warn("gpu filter init failed, using cpu", slog.Any("err", err))
		return cpu, func() {}
	}
	return &render.Fallback{Primary: render.GPUTransformer{Filter: f}, Secondary: cpu}, func() {
		f.Cleanup()
		dev.Release()
	}
}
