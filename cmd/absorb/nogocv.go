//go:build !gocv

package main

import (
	"errors"

	"github.com/soypat/absorb/capture"
)

func gocvDriver() (capture.Driver, error) {
	return nil, errors.New("gocv driver not compiled in, rebuild with -tags gocv")
}
