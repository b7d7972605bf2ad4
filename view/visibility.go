package view

import "github.com/soypat/absorb/source"

// Mode is the presentation mode.
type Mode uint8

const (
	ModeOriginal    Mode = iota // raw source shown as is
	ModeTransformed             // absorbed colors: inverted raster shown
)

func (m Mode) String() string {
	switch m {
	case ModeOriginal:
		return "original"
	case ModeTransformed:
		return "transformed"
	}
	return "unknown"
}

// Visibility lists which presentation elements should be shown.
type Visibility struct {
	Placeholder bool // no source: prompt to start camera or load an image
	Loading     bool // placeholder shows a loading indicator
	Raw         bool // raw source element (live video or image)
	Canvas      bool // transformed raster
	FlipCamera  bool // camera facing control
}

// DeriveVisibility computes element visibility from the mode and active source kind.
func DeriveVisibility(mode Mode, kind source.Kind) Visibility {
	has := kind != source.KindNone
	return Visibility{
		Placeholder: !has,
		Raw:         has && mode == ModeOriginal,
		Canvas:      has && mode == ModeTransformed,
		FlipCamera:  kind == source.KindVideo,
	}
}
