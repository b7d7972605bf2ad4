package view

import (
	"testing"

	"github.com/soypat/absorb/source"
)

func TestDeriveVisibility(t *testing.T) {
	tests := []struct {
		mode Mode
		kind source.Kind
		want Visibility
	}{
		{ModeOriginal, source.KindNone, Visibility{Placeholder: true}},
		{ModeTransformed, source.KindNone, Visibility{Placeholder: true}},
		{ModeOriginal, source.KindImage, Visibility{Raw: true}},
		{ModeTransformed, source.KindImage, Visibility{Canvas: true}},
		{ModeOriginal, source.KindVideo, Visibility{Raw: true, FlipCamera: true}},
		{ModeTransformed, source.KindVideo, Visibility{Canvas: true, FlipCamera: true}},
	}
	for _, tt := range tests {
		got := DeriveVisibility(tt.mode, tt.kind)
		if got != tt.want {
			t.Errorf("%v/%v: want %+v, got %+v", tt.mode, tt.kind, tt.want, got)
		}
		if got.Raw && got.Canvas {
			t.Errorf("%v/%v: raw and canvas both visible", tt.mode, tt.kind)
		}
	}
}
