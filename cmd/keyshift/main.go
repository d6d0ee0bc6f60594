// Package main is the entry point for keyshift.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	app         app.Options
	devices     []string
	grab        bool
	logJSON     bool
	listDevices bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	log := app.NewLogger(app.LoggerConfig{JSON: opts.logJSON})
	opts.app.Logger = log

	if opts.listDevices {
		if err := listDevices(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	dev, names, err := openDevice(opts.devices, opts.grab, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open input devices: %v\n", err)
		return 1
	}
	opts.app.Names = names

	application, err := app.New(opts.app, dev)
	if err != nil {
		_ = dev.Close()
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("keyshift stopped with an error")
		return 1
	}
	return 0
}

// deviceList collects repeated -device flags.
type deviceList []string

func (d *deviceList) String() string { return strings.Join(*d, ",") }

func (d *deviceList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func parseFlags() options {
	var opts options
	var devices deviceList
	var showVersion bool

	flag.StringVar(&opts.app.ConfigPath, "config", "", "Path to the profile (.toml, .yaml)")
	flag.StringVar(&opts.app.ConfigPath, "c", "", "Path to the profile (shorthand)")
	flag.BoolVar(&opts.app.Watch, "watch", true, "Reload the profile when it changes")
	flag.Var(&devices, "device", "Input device to read (repeatable; default: every keyboard)")
	flag.BoolVar(&opts.grab, "grab", true, "Grab devices exclusively")
	flag.StringVar(&opts.app.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the profile")
	flag.BoolVar(&opts.logJSON, "log-json", false, "Log in JSON")
	flag.BoolVar(&opts.listDevices, "list-devices", false, "List input devices and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "keyshift - keyboard and mouse remapping engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: keyshift [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  keyshift -list-devices\n")
		fmt.Fprintf(os.Stderr, "  keyshift -c ~/.config/keyshift/keys.toml\n")
		fmt.Fprintf(os.Stderr, "  keyshift -c keys.yaml -device /dev/input/event3 -log-level debug\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("keyshift %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.app.LogLevel != "" {
		if _, err := logrus.ParseLevel(opts.app.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.app.LogLevel)
			os.Exit(1)
		}
	}

	opts.devices = devices
	return opts
}
