// Package view holds the viewer's session state: the presentation mode, the
// active source and the camera, kept mutually consistent, plus the
// presentation loop that renders the absorbed colors view.
//
// A Session is single threaded. All methods must be called from the goroutine
// running its scheduler; asynchronous work (camera acquisition, image decoding)
// posts its completion back to the scheduler.
package view

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/capture"
	"github.com/soypat/absorb/loop"
	"github.com/soypat/absorb/render"
	"github.com/soypat/absorb/source"
)

// User facing messages.
const (
	MsgCameraFailed = "Could not access the camera. Please ensure permission is granted and no other application is using it."
	MsgDecodeFailed = "Could not load the image. Please choose a valid image file."
)

// Notice is a user facing error notification.
type Notice struct {
	Message string
	Err     error
}

// Hooks connect a session to its presentation adapter. All are optional
// and called on the scheduler goroutine.
type Hooks struct {
	// Visibility is called whenever element visibility may have changed.
	Visibility func(Visibility)
	// Source is called with the newly installed source, nil when cleared,
	// so the adapter can bind its raw source element.
	Source func(source.Source)
	// Notice reports acquisition and decode failures to the user.
	Notice func(Notice)
}

// Config configures a [Session].
type Config struct {
	Scheduler loop.Scheduler
	Driver    capture.Driver
	Surface   render.Surface
	// Engine renders the transformed view. nil uses the CPU inversion.
	Engine *render.Engine
	// Policy chooses the fit policy. nil uses DefaultPolicy.
	Policy PolicyFunc
	// Preferred camera resolution. Zero uses 640x480.
	Width, Height int
	// Facing of the first camera start.
	Facing capture.Facing
	Hooks  Hooks
}

// State is a snapshot of the session.
type State struct {
	Mode          Mode
	Source        source.Kind
	Facing        capture.Facing
	CameraActive  bool
	CameraPending bool
	Loading       bool
	Running       bool
	Handle        loop.FrameID
}

// Session is the view-mode state machine.
type Session struct {
	sched     loop.Scheduler
	camera    *capture.Manager
	presenter *Presenter
	hooks     Hooks

	mode     Mode
	src      source.Source
	loading  bool
	imageGen uint64 // invalidates outstanding decodes
	vis      Visibility
	controls []absorb.Control
}

// NewSession returns a session in Original mode with no source.
func NewSession(cfg Config) *Session {
	engine := cfg.Engine
	if engine == nil {
		engine = render.NewEngine(nil)
	}
	s := &Session{
		sched:     cfg.Scheduler,
		camera:    capture.NewManager(cfg.Driver, cfg.Scheduler, cfg.Width, cfg.Height),
		presenter: NewPresenter(cfg.Scheduler, engine, cfg.Surface, cfg.Policy),
		hooks:     cfg.Hooks,
	}
	s.camera.OnStart = s.cameraStarted
	s.camera.OnError = s.cameraFailed
	s.initControls(cfg.Facing)
	s.applyVisibility()
	return s
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	st := State{
		Mode:          s.mode,
		Source:        source.KindNone,
		Facing:        s.camera.Facing(),
		CameraActive:  s.camera.Session() != nil,
		CameraPending: s.camera.Pending(),
		Loading:       s.loading,
		Running:       s.presenter.Running(),
		Handle:        s.presenter.Handle(),
	}
	if s.src != nil {
		st.Source = s.src.Kind()
	}
	return st
}

// Visibility returns the last visibility applied.
func (s *Session) Visibility() Visibility { return s.vis }

// Source returns the active source or nil.
func (s *Session) Source() source.Source { return s.src }

// Presenter returns the session's presentation loop controller.
func (s *Session) Presenter() *Presenter { return s.presenter }

// Camera returns the session's capture manager.
func (s *Session) Camera() *capture.Manager { return s.camera }

// SetMode switches between the original and transformed presentation.
// Entering Transformed with a source starts the presentation loop;
// entering Original stops it.
func (s *Session) SetMode(m Mode) {
	if m != s.mode {
		absorb.Logger().Info("view mode", slog.String("mode", m.String()))
	}
	s.mode = m
	s.syncPresenter()
	s.applyVisibility()
}

// ToggleMode flips between Original and Transformed.
func (s *Session) ToggleMode() {
	if s.mode == ModeTransformed {
		s.SetMode(ModeOriginal)
	} else {
		s.SetMode(ModeTransformed)
	}
}

// SetSource installs src as the active source, nil clears it. Switching away
// from the live camera stops the capture session and an outstanding image
// load is discarded. The presentation loop is stopped before the new source
// is installed and restarted if in Transformed mode.
func (s *Session) SetSource(src source.Source) {
	s.cancelDecode()
	if s.camera.Active() && !s.isCameraVideo(src) {
		s.camera.Stop()
	}
	s.install(src)
}

// install replaces the source without touching the camera.
func (s *Session) install(src source.Source) {
	s.presenter.Stop()
	s.src = src
	if s.hooks.Source != nil {
		s.hooks.Source(src)
	}
	s.syncPresenter()
	s.applyVisibility()
}

func (s *Session) isCameraVideo(src source.Source) bool {
	cs := s.camera.Session()
	v, ok := src.(*source.Video)
	return ok && cs != nil && cs.Video() == v
}

func (s *Session) syncPresenter() {
	if s.mode == ModeTransformed && s.src != nil {
		s.presenter.Start(s.src)
	} else {
		s.presenter.Stop()
	}
}

// StartCamera clears the current source and requests the camera with the
// session's facing. The video source is installed once the stream is live.
func (s *Session) StartCamera() {
	s.startCamera(s.camera.Facing())
}

func (s *Session) startCamera(f capture.Facing) {
	s.SetSource(nil)
	s.camera.Start(f)
	s.applyVisibility()
}

// StopCamera releases the camera. If the live video is the source it is cleared.
func (s *Session) StopCamera() {
	wasVideo := s.src != nil && s.src.Kind() == source.KindVideo
	s.camera.Stop()
	if wasVideo {
		s.install(nil)
	} else {
		s.applyVisibility()
	}
}

// ToggleCamera stops the camera if active and starts it otherwise.
func (s *Session) ToggleCamera() {
	if s.camera.Active() {
		s.StopCamera()
	} else {
		s.StartCamera()
	}
}

// FlipCamera restarts an active camera with the opposite facing.
// It is a no-op when the camera is not active.
func (s *Session) FlipCamera() bool {
	if !s.camera.Active() {
		return false
	}
	// The old session's video is released by the restart.
	s.install(nil)
	s.camera.ToggleFacing()
	s.applyVisibility()
	return true
}

func (s *Session) cameraStarted(cs *capture.Session) {
	s.install(cs.Video())
}

func (s *Session) cameraFailed(err error) {
	s.install(nil)
	s.notify(Notice{Message: MsgCameraFailed, Err: err})
}

// LoadImage stops any camera, clears the source and decodes data in the
// background. The decoded image becomes the source; on failure the user is
// notified and no source is set.
func (s *Session) LoadImage(data []byte) {
	s.load(func() (*source.Image, error) { return source.DecodeBytes(data) })
}

// LoadURL is like LoadImage but fetches the image over HTTP. Images from
// an origin other than origin are restricted and cannot be transformed.
func (s *Session) LoadURL(ctx context.Context, client *http.Client, rawURL string, origin *url.URL) {
	s.load(func() (*source.Image, error) { return source.LoadURL(ctx, client, rawURL, origin) })
}

func (s *Session) load(decode func() (*source.Image, error)) {
	s.SetSource(nil)
	s.imageGen++
	gen := s.imageGen
	s.loading = true
	s.applyVisibility()
	go func() {
		img, err := decode()
		s.sched.Post(func() { s.imageDecoded(gen, img, err) })
	}()
}

func (s *Session) imageDecoded(gen uint64, img *source.Image, err error) {
	if gen != s.imageGen {
		return
	}
	s.loading = false
	if err != nil {
		absorb.Logger().Error("image load failed", slog.Any("err", err))
		s.applyVisibility()
		s.notify(Notice{Message: MsgDecodeFailed, Err: err})
		return
	}
	s.SetSource(img)
}

func (s *Session) cancelDecode() {
	s.imageGen++
	s.loading = false
}

// Close stops the presentation loop and releases the camera.
func (s *Session) Close() {
	s.cancelDecode()
	s.presenter.Stop()
	s.camera.Stop()
}

func (s *Session) notify(n Notice) {
	if s.hooks.Notice != nil {
		s.hooks.Notice(n)
	}
}

func (s *Session) applyVisibility() {
	kind := source.KindNone
	if s.src != nil {
		kind = s.src.Kind()
	}
	v := DeriveVisibility(s.mode, kind)
	v.Loading = s.loading || s.camera.Pending()
	v.FlipCamera = s.camera.Active()
	s.vis = v
	if s.hooks.Visibility != nil {
		s.hooks.Visibility(v)
	}
}

// Controls exposes the view mode and camera facing as generic controls.
func (s *Session) Controls() []absorb.Control { return s.controls }

func (s *Session) initControls(f capture.Facing) {
	s.camera.SetFacing(f)
	s.controls = []absorb.Control{
		&absorb.ControlEnum[Mode]{
			Name:        "View",
			Description: "Show original or absorbed colors",
			ValidValues: []Mode{ModeOriginal, ModeTransformed},
			Current:     func() Mode { return s.mode },
			OnChange: func(m Mode) error {
				s.SetMode(m)
				return nil
			},
		},
		&absorb.ControlEnum[capture.Facing]{
			Name:        "Camera",
			Description: "Front or back camera",
			ValidValues: []capture.Facing{capture.FacingFront, capture.FacingBack},
			Current:     s.camera.Facing,
			OnChange: func(f capture.Facing) error {
				if f == s.camera.Facing() {
					return nil
				}
				if !s.FlipCamera() {
					return errCameraInactive
				}
				return nil
			},
		},
	}
}

var errCameraInactive = errors.New("camera is not active")

// Check reports an error if the session violates its invariants:
// the loop runs only in Transformed mode with a source, and an image
// source never coexists with a live camera.
func (s *Session) Check() error {
	running := s.presenter.Running()
	switch {
	case running && s.mode != ModeTransformed:
		return errors.New("loop running in original mode")
	case running && s.src == nil:
		return errors.New("loop running without source")
	case s.presenter.Handle() != 0 && !running:
		return errors.New("pending tick while idle")
	case s.src != nil && s.src.Kind() == source.KindImage && s.camera.Active():
		return errors.New("camera active with image source")
	}
	return nil
}
