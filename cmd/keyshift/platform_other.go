//go:build !linux

package main

import (
	"errors"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/app"
	"github.com/dshills/keyshift/internal/input/key"
)

var errUnsupported = errors.New("no input backend for " + runtime.GOOS)

func openDevice([]string, bool, logrus.FieldLogger) (app.Device, func(*key.Names), error) {
	return nil, nil, errUnsupported
}

func listDevices(io.Writer) error {
	return errUnsupported
}
