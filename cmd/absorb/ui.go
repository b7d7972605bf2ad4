package main

import (
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/capture"
	"github.com/soypat/absorb/internal/config"
	"github.com/soypat/absorb/loop"
	"github.com/soypat/absorb/render"
	"github.com/soypat/absorb/source"
	"github.com/soypat/absorb/view"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// viewer binds a view.Session to a fyne window. Session methods run on the
// loop; widget callbacks post to it.
type viewer struct {
	win     fyne.Window
	lp      *loop.Loop
	cfg     *config.AppConfig
	cfgPath string
	sess    *view.Session

	// Loop owned.
	raw    *view.Presenter
	src    source.Source
	narrow atomic.Int64

	media       *fyne.Container
	spacer      *canvas.Rectangle
	rawImage    *canvas.Image
	outImage    *canvas.Image
	placeholder *fyne.Container
	loading     *widget.ProgressBarInfinite
	viewBtn     *widget.Button
	cameraBtn   *widget.Button
	flipBtn     *widget.Button
	modeCtl     *absorb.ControlEnum[view.Mode]
	facingCtl   *absorb.ControlEnum[capture.Facing]
	narrowCtl   *absorb.ControlOrdered[int]
}

func newViewer(a fyne.App, lp *loop.Loop, cfg *config.AppConfig, cfgPath string, driver capture.Driver, engine *render.Engine) *viewer {
	v := &viewer{
		win:     a.NewWindow("Absorbed colors"),
		lp:      lp,
		cfg:     cfg,
		cfgPath: cfgPath,
	}
	v.narrow.Store(int64(cfg.Display.NarrowWidth))
	v.narrowCtl = &absorb.ControlOrdered[int]{
		Name:        "Narrow width",
		Description: "Widest window, in pixels, that fills the view with live video",
		Value:       cfg.Display.NarrowWidth,
		Min:         320,
		Max:         2560,
		Step:        16,
		OnChange: func(w int) error {
			v.narrow.Store(int64(w))
			v.cfg.Display.NarrowWidth = w
			return nil
		},
	}

	v.rawImage = canvas.NewImageFromImage(nil)
	v.rawImage.FillMode = canvas.ImageFillStretch
	v.outImage = canvas.NewImageFromImage(nil)
	v.outImage.FillMode = canvas.ImageFillStretch
	v.outImage.ScaleMode = canvas.ImageScaleFastest
	v.spacer = canvas.NewRectangle(color.Black)
	v.loading = widget.NewProgressBarInfinite()
	hint := widget.NewLabel("Start camera or open an image")
	hint.Alignment = fyne.TextAlignCenter
	v.placeholder = container.NewCenter(container.NewVBox(widget.NewIcon(theme.MediaPhotoIcon()), hint, v.loading))
	v.media = container.NewStack(v.spacer, v.rawImage, v.outImage, v.placeholder)

	v.raw = view.NewPresenter(lp, render.NewRawEngine(), newImageSurface(v.rawImage, v.media), v.policy)
	v.sess = view.NewSession(view.Config{
		Scheduler: lp,
		Driver:    driver,
		Surface:   newImageSurface(v.outImage, v.media),
		Engine:    engine,
		Policy:    v.policy,
		Width:     cfg.Camera.Width,
		Height:    cfg.Camera.Height,
		Facing:    cfg.Facing(),
		Hooks: view.Hooks{
			Visibility: v.applyVisibility,
			Source:     v.bindSource,
			Notice:     v.notice,
		},
	})
	for _, c := range v.sess.Controls() {
		switch c := c.(type) {
		case *absorb.ControlEnum[view.Mode]:
			v.modeCtl = c
		case *absorb.ControlEnum[capture.Facing]:
			v.facingCtl = c
		}
	}

	v.viewBtn = widget.NewButtonWithIcon("", theme.VisibilityIcon(), func() { v.post(v.nextMode) })
	v.cameraBtn = widget.NewButtonWithIcon("", theme.MediaVideoIcon(), func() { v.post(v.sess.ToggleCamera) })
	v.flipBtn = widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() { v.post(v.flip) })
	openBtn := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), v.openImage)
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), v.showSettings)
	v.flipBtn.Hide()
	bar := container.NewHBox(v.viewBtn, v.cameraBtn, v.flipBtn, openBtn, settingsBtn)

	v.win.SetContent(container.NewBorder(nil, container.NewCenter(bar), nil, nil, v.media))
	v.win.Resize(fyne.NewSize(float32(cfg.Display.WindowWidth), float32(cfg.Display.WindowHeight)))
	v.win.Canvas().SetOnTypedKey(v.typedKey)
	v.win.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		v.openImage()
	})
	v.post(func() {
		if cfg.Display.StartAbsorbed {
			v.sess.SetMode(view.ModeTransformed)
		} else {
			v.applyVisibility(v.sess.Visibility())
		}
	})
	return v
}

func (v *viewer) post(fn func()) { v.lp.Post(fn) }

func (v *viewer) policy(kind source.Kind, area image.Rectangle) render.FitPolicy {
	return render.PolicyFor(kind, render.ClassifyWidth(area.Dx(), int(v.narrow.Load())))
}

func (v *viewer) nextMode() {
	if err := v.modeCtl.Next(); err != nil {
		absorb.Logger().Error("toggling view", slog.Any("err", err))
	}
}

func (v *viewer) flip() {
	if err := v.facingCtl.Next(); err != nil {
		absorb.Logger().Debug("flip ignored", slog.Any("err", err))
	}
}

func (v *viewer) typedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeySpace:
		v.post(v.nextMode)
	case fyne.KeyC:
		v.post(v.sess.ToggleCamera)
	case fyne.KeyF:
		v.post(v.flip)
	}
}

// bindSource runs on the loop when the session installs a source.
func (v *viewer) bindSource(src source.Source) {
	v.raw.Stop()
	v.src = src
	if src == nil {
		return
	}
	// Desktop windows size the view to the source.
	w, h := src.Size()
	if src.Kind() == source.KindVideo {
		w, h = v.cfg.Camera.Width, v.cfg.Camera.Height
	}
	winW := int(v.win.Canvas().Size().Width)
	if render.ClassifyWidth(winW, int(v.narrow.Load())) == render.SurfaceWide && w > 0 && h > 0 {
		v.spacer.SetMinSize(fyne.NewSize(float32(w), float32(h)))
	} else {
		v.spacer.SetMinSize(fyne.NewSize(0, 0))
	}
	v.spacer.Refresh()
}

// applyVisibility runs on the loop whenever the session state changes.
func (v *viewer) applyVisibility(vis view.Visibility) {
	if v.sess == nil {
		return // Called once while the session is built.
	}
	if vis.Raw && v.src != nil {
		v.raw.Start(v.src)
	} else {
		v.raw.Stop()
	}
	st := v.sess.State()
	show(v.placeholder, vis.Placeholder)
	show(v.loading, vis.Loading)
	show(v.rawImage, vis.Raw)
	show(v.outImage, vis.Canvas)
	show(v.flipBtn, vis.FlipCamera)
	if st.Mode == view.ModeTransformed {
		v.viewBtn.SetIcon(theme.VisibilityOffIcon())
	} else {
		v.viewBtn.SetIcon(theme.VisibilityIcon())
	}
	if st.CameraActive || st.CameraPending {
		v.cameraBtn.SetIcon(theme.MediaStopIcon())
	} else {
		v.cameraBtn.SetIcon(theme.MediaVideoIcon())
	}
}

func show(o fyne.CanvasObject, visible bool) {
	if visible {
		o.Show()
	} else {
		o.Hide()
	}
}

func (v *viewer) notice(n view.Notice) {
	dialog.ShowError(errors.New(n.Message), v.win)
}

func (v *viewer) openImage() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.win)
			return
		} else if r == nil {
			return // Cancelled.
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			dialog.ShowError(err, v.win)
			return
		}
		absorb.Logger().Info("opening image", slog.String("uri", r.URI().String()), slog.Int("bytes", len(data)))
		v.post(func() { v.sess.LoadImage(data) })
	}, v.win)
	d.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	d.Show()
}

func (v *viewer) showSettings() {
	name, desc := v.narrowCtl.Describe()
	width := binding.NewFloat()
	width.Set(float64(v.narrowCtl.ActualValue().(int)))
	width.AddListener(binding.NewDataListener(func() {
		f, err := width.Get()
		if err != nil {
			return
		}
		if err := v.narrowCtl.ChangeValue(int(f)); err != nil {
			absorb.Logger().Warn("narrow width", slog.Any("err", err))
		}
	}))
	slider := widget.NewSliderWithData(float64(v.narrowCtl.Min), float64(v.narrowCtl.Max), width)
	slider.Step = float64(v.narrowCtl.Step)
	value := widget.NewLabelWithData(binding.FloatToStringWithFormat(width, "%.0f px"))
	save := widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() {
		if err := config.SaveFile(v.cfgPath, v.cfg); err != nil {
			dialog.ShowError(err, v.win)
			return
		}
		absorb.Logger().Info("config saved", slog.String("path", v.cfgPath))
	})
	content := container.NewVBox(widget.NewLabel(desc), container.NewBorder(nil, nil, nil, value, slider), save)
	dialog.ShowCustom(name, "Close", content, v.win)
}

// imageSurface presents frames on a canvas.Image sized like box.
// Frames alternate between two buffers so the one being drawn is never written.
type imageSurface struct {
	img *canvas.Image
	box fyne.CanvasObject

	mu    sync.Mutex
	bufs  [2]*image.RGBA
	front int
}

var _ render.Surface = (*imageSurface)(nil)

func newImageSurface(img *canvas.Image, box fyne.CanvasObject) *imageSurface {
	return &imageSurface{img: img, box: box}
}

func (s *imageSurface) Bounds() image.Rectangle {
	sz := s.box.Size()
	return image.Rect(0, 0, int(sz.Width), int(sz.Height))
}

func (s *imageSurface) Present(frame *image.RGBA) error {
	s.mu.Lock()
	back := 1 - s.front
	s.bufs[back] = render.CopyRGBA(s.bufs[back], frame)
	s.front = back
	s.img.Image = s.bufs[back]
	s.mu.Unlock()
	s.img.Refresh()
	return nil
}
