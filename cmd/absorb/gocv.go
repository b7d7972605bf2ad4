//go:build gocv

package main

import "github.com/soypat/absorb/capture"

func gocvDriver() (capture.Driver, error) { return capture.NewGoCV(), nil }
