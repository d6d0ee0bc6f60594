//go:build linux

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/app"
	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/platform/linux"
)

func openDevice(paths []string, grab bool, log logrus.FieldLogger) (app.Device, func(*key.Names), error) {
	hook, err := linux.Open(linux.Options{Devices: paths, Grab: grab, Log: log})
	if err != nil {
		return nil, nil, err
	}
	return hook, linux.AddKeyNames, nil
}

func listDevices(w io.Writer) error {
	devices, err := linux.ListDevices()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNAME\tKEYBOARD\tPOINTER\tVIRTUAL")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\n", d.Path, d.Name, d.Keyboard, d.Pointer, d.IsVirtual)
	}
	return tw.Flush()
}
