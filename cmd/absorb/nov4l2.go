//go:build !(linux && v4l2)

package main

import (
	"errors"

	"github.com/soypat/absorb/capture"
)

func v4l2Driver() (capture.Driver, error) {
	return nil, errors.New("v4l2 driver not compiled in, rebuild on linux with -tags v4l2")
}
