//go:build linux && v4l2

package main

import "github.com/soypat/absorb/capture"

func v4l2Driver() (capture.Driver, error) { return capture.NewV4L2(), nil }
