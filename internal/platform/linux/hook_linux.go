//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/dshills/keyshift/internal/input"
	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/output"
)

// Options configures Open.
type Options struct {
	// Devices lists device paths to read. Empty selects every physical
	// keyboard.
	Devices []string

	// Grab takes exclusive access to the devices. Without it the engine
	// observes input but cannot swallow or replace it.
	Grab bool

	// Log receives device and read errors.
	Log logrus.FieldLogger
}

// Hook owns the source devices and the virtual output device.
type Hook struct {
	sources []*evdev.InputDevice
	grab    bool
	log     logrus.FieldLogger

	mu   sync.Mutex
	virt *evdev.InputDevice

	closeOnce sync.Once
}

// Open selects and opens the source devices and creates the virtual
// output device. Opening needs read access to /dev/input and write access
// to /dev/uinput.
func Open(opts Options) (*Hook, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	sources, err := openSources(opts.Devices)
	if err != nil {
		return nil, err
	}

	id := evdev.InputID{BusType: uint16(evdev.BUS_VIRTUAL), Vendor: 0x1, Product: 0x1, Version: 1}
	virt, err := evdev.CreateDevice(output.Sentinel, id, capabilities(sources))
	if err != nil {
		closeAll(sources)
		return nil, fmt.Errorf("creating uinput device: %w", err)
	}

	h := &Hook{sources: sources, grab: opts.Grab, log: log, virt: virt}
	for _, dev := range sources {
		name, _ := dev.Name()
		log.WithFields(logrus.Fields{"path": dev.Path(), "name": name}).Info("platform: using device")
	}
	if !opts.Grab {
		log.Warn("platform: devices are not grabbed; remapped keys will also reach applications unchanged")
	}
	return h, nil
}

// Send writes one key transition to the virtual device. It is the
// engine's output.Sender.
func (h *Hook) Send(code key.Code, pressed bool) error {
	var value int32
	if pressed {
		value = 1
	}
	return h.write(&evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.EvCode(code), Value: value}, true)
}

var _ output.Sender = (*Hook)(nil)

// write emits ev and, when report is set, a SYN_REPORT. Writes from the
// read loops and the output sink are serialized.
func (h *Hook) write(ev *evdev.InputEvent, report bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.virt == nil {
		return output.ErrClosed
	}
	if err := h.virt.WriteOne(ev); err != nil {
		return err
	}
	if report {
		return h.virt.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	}
	return nil
}

// Run grabs the devices and feeds their events to p until ctx is done or
// every device is gone.
func (h *Hook) Run(ctx context.Context, p input.Processor) error {
	if h.grab {
		for i, dev := range h.sources {
			if err := dev.Grab(); err != nil {
				for _, g := range h.sources[:i] {
					_ = g.Ungrab()
				}
				return fmt.Errorf("grabbing %s: %w", dev.Path(), err)
			}
		}
		defer func() {
			for _, dev := range h.sources {
				_ = dev.Ungrab()
			}
		}()
	}
	for _, dev := range h.sources {
		if err := dev.NonBlock(); err != nil {
			return fmt.Errorf("setting non-blocking mode for %s: %w", dev.Path(), err)
		}
	}

	var wg sync.WaitGroup
	for _, dev := range h.sources {
		wg.Add(1)
		go func(dev *evdev.InputDevice) {
			defer wg.Done()
			h.readLoop(ctx, dev, p)
		}(dev)
	}
	wg.Wait()
	return ctx.Err()
}

func (h *Hook) readLoop(ctx context.Context, dev *evdev.InputDevice, p input.Processor) {
	log := h.log.WithField("path", dev.Path())
	for {
		if ctx.Err() != nil {
			return
		}
		events, err := dev.ReadSlice(64)
		if err != nil {
			switch {
			case isClosed(err):
				log.Warn("platform: device gone")
				return
			case isWouldBlock(err):
				if !sleep(ctx, 2*time.Millisecond) {
					return
				}
			default:
				log.WithError(err).Warn("platform: read failed")
				if !sleep(ctx, 100*time.Millisecond) {
					return
				}
			}
			continue
		}
		for i := range events {
			h.dispatch(&events[i], p, log)
		}
	}
}

// dispatch hands key events to p and forwards everything p does not
// swallow. Non-key events (pointer motion, scroll, sync) are forwarded
// as they are.
func (h *Hook) dispatch(ev *evdev.InputEvent, p input.Processor, log logrus.FieldLogger) {
	raw, ok := toRaw(ev)
	if !ok {
		if h.grab && ev.Type != evdev.EV_MSC {
			if err := h.write(ev, false); err != nil {
				log.WithError(err).Debug("platform: forward failed")
			}
		}
		return
	}
	if p.Process(raw) || !h.grab {
		return
	}
	if err := h.Send(key.Code(raw.Code), raw.Pressed); err != nil {
		log.WithError(err).Warn("platform: pass-through failed")
	}
}

// toRaw converts a key event. Auto-repeat (value 2) is a press.
func toRaw(ev *evdev.InputEvent) (input.RawInputEvent, bool) {
	if ev.Type != evdev.EV_KEY {
		return input.RawInputEvent{}, false
	}
	return input.RawInputEvent{
		Code:      uint32(ev.Code),
		Pressed:   ev.Value != 0,
		Timestamp: time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*int64(time.Microsecond)),
	}, true
}

// Close releases the devices and destroys the virtual device.
func (h *Hook) Close() error {
	var errs []error
	h.closeOnce.Do(func() {
		for _, dev := range h.sources {
			if err := dev.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if err := h.virt.Close(); err != nil {
			errs = append(errs, err)
		}
		h.virt = nil
	})
	return errors.Join(errs...)
}

func isClosed(err error) bool {
	return errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENODEV)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
