//go:build linux

package linux

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/output"
)

// ErrNoDevices is returned when no usable keyboard was found.
var ErrNoDevices = errors.New("no keyboard devices found")

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Path      string
	Name      string
	Keyboard  bool
	Pointer   bool
	IsVirtual bool
}

// ListDevices returns every readable input device, sorted by path.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	devices := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		dev, err := openDevice(p.Path)
		if err != nil {
			continue
		}
		devices = append(devices, describe(dev, p.Name))
		_ = dev.Close()
	}
	return devices, nil
}

func describe(dev *evdev.InputDevice, fallback string) DeviceInfo {
	name := fallback
	if actual, err := dev.Name(); err == nil && actual != "" {
		name = actual
	}
	return DeviceInfo{
		Path:      dev.Path(),
		Name:      name,
		Keyboard:  isKeyboard(dev),
		Pointer:   isPointer(dev),
		IsVirtual: isVirtual(dev, name),
	}
}

// openSources opens the devices at paths, or every physical keyboard when
// paths is empty. Our own virtual device is always skipped.
func openSources(paths []string) ([]*evdev.InputDevice, error) {
	if len(paths) > 0 {
		devices := make([]*evdev.InputDevice, 0, len(paths))
		for _, path := range paths {
			dev, err := openDevice(path)
			if err != nil {
				closeAll(devices)
				return nil, fmt.Errorf("opening %s: %w", path, err)
			}
			if name, _ := dev.Name(); name == output.Sentinel {
				_ = dev.Close()
				closeAll(devices)
				return nil, fmt.Errorf("%s is keyshift's own output device", path)
			}
			if len(dev.CapableEvents(evdev.EV_KEY)) == 0 {
				_ = dev.Close()
				closeAll(devices)
				return nil, fmt.Errorf("%s does not expose key events", path)
			}
			devices = append(devices, dev)
		}
		return devices, nil
	}

	infos, err := ListDevices()
	if err != nil {
		return nil, err
	}
	var devices []*evdev.InputDevice
	for _, info := range infos {
		if !info.Keyboard || info.IsVirtual {
			continue
		}
		dev, err := openDevice(info.Path)
		if err != nil {
			continue
		}
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	return devices, nil
}

func openDevice(path string) (*evdev.InputDevice, error) {
	return evdev.OpenWithFlags(path, os.O_RDONLY)
}

func closeAll(devices []*evdev.InputDevice) {
	for _, dev := range devices {
		_ = dev.Close()
	}
}

// isKeyboard reports whether dev has letter keys; mice and power buttons
// also expose EV_KEY.
func isKeyboard(dev *evdev.InputDevice) bool {
	for _, c := range dev.CapableEvents(evdev.EV_KEY) {
		if c == evdev.KEY_A {
			return true
		}
	}
	return false
}

func isPointer(dev *evdev.InputDevice) bool {
	var relX, relY bool
	for _, c := range dev.CapableEvents(evdev.EV_REL) {
		switch c {
		case evdev.REL_X:
			relX = true
		case evdev.REL_Y:
			relY = true
		}
	}
	return relX && relY
}

func isVirtual(dev *evdev.InputDevice, name string) bool {
	if name == output.Sentinel {
		return true
	}
	if id, err := dev.InputID(); err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "uinput") || strings.Contains(lower, "virtual")
}

// capabilities returns the union of the sources' key and relative axes
// plus every key the engine can name, so remaps to keys the keyboard lacks
// still work.
func capabilities(sources []*evdev.InputDevice) map[evdev.EvType][]evdev.EvCode {
	keys := make(map[evdev.EvCode]struct{})
	rel := make(map[evdev.EvCode]struct{})
	for _, dev := range sources {
		for _, c := range dev.CapableEvents(evdev.EV_KEY) {
			keys[c] = struct{}{}
		}
		for _, c := range dev.CapableEvents(evdev.EV_REL) {
			rel[c] = struct{}{}
		}
	}
	for c := key.CodeEsc; c <= key.CodeF24; c++ {
		keys[evdev.EvCode(c)] = struct{}{}
	}
	for c := key.CodeMouseLeft; c <= key.CodeMouseExtra; c++ {
		keys[evdev.EvCode(c)] = struct{}{}
	}

	caps := map[evdev.EvType][]evdev.EvCode{evdev.EV_KEY: sortedCodes(keys)}
	if len(rel) > 0 {
		caps[evdev.EV_REL] = sortedCodes(rel)
	}
	return caps
}

func sortedCodes(set map[evdev.EvCode]struct{}) []evdev.EvCode {
	codes := make([]evdev.EvCode, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		return codes[i] < codes[j]
	})
	return codes
}

// AddKeyNames registers the kernel's KEY_* and BTN_* names with n, so
// profiles can name keys the built-in table lacks ("KEY_VOLUMEUP").
func AddKeyNames(n *key.Names) {
	for name, c := range evdev.KEYFromString {
		n.Add(name, key.Code(c))
	}
}
