package source

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Video is a live frame source. Frames are pushed by a capture session's
// reader goroutine and drawn by the render loop, so Video is safe for concurrent use.
// Only the latest frame is held.
type Video struct {
	mu      sync.Mutex
	frame   image.Image
	release func()
	frames  uint64
	closed  bool
	// Scaler used by Draw. nil means DefaultScaler.
	Scaler draw.Scaler
}

var _ Source = (*Video)(nil)

// NewVideo returns a Video with no frames. It is not ready until the first Push.
func NewVideo() *Video { return &Video{} }

// Kind implements [Source].
func (v *Video) Kind() Kind { return KindVideo }

// Push replaces the held frame. release, if non-nil, is called once the frame
// is no longer referenced. Frames pushed after Close are released immediately.
func (v *Video) Push(frame image.Image, release func()) {
	v.mu.Lock()
	if v.closed || frame == nil {
		v.mu.Unlock()
		if release != nil {
			release()
		}
		return
	}
	prev := v.release
	v.frame, v.release = frame, release
	v.frames++
	v.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Frames returns the number of frames pushed so far.
func (v *Video) Frames() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Ready implements [Source]: true once at least one non-empty frame arrived.
func (v *Video) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame != nil && !v.frame.Bounds().Empty()
}

// Size implements [Source].
func (v *Video) Size() (width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frame == nil {
		return 0, 0
	}
	b := v.frame.Bounds()
	return b.Dx(), b.Dy()
}

// Draw implements [Source]. The frame lock is held while scaling so the
// capture reader cannot release the frame mid-draw.
func (v *Video) Draw(dst draw.Image, r image.Rectangle) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frame == nil || v.frame.Bounds().Empty() {
		return ErrNotReady
	}
	scale(v.Scaler, dst, r, v.frame)
	return nil
}

// Close releases the held frame. Further pushes are dropped.
func (v *Video) Close() {
	v.mu.Lock()
	release := v.release
	v.frame, v.release = nil, nil
	v.closed = true
	v.mu.Unlock()
	if release != nil {
		release()
	}
}
