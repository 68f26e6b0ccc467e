package sensor

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

var ErrInvalidPort = errors.New("not a usable microcontroller port")

type PortInfo struct {
	Name         string `json:"port"`
	Description  string `json:"description"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	USB          bool   `json:"usb"`
	Valid        bool   `json:"valid"`
}

var (
	rejectPatterns = []string{"debug-console", "bluetooth", "modem", "dialout"}
	acceptPatterns = []string{"usbserial", "usbmodem", "ttyusb", "ttyacm", "wchusbserial", "slab_usbtouart"}
)

// ValidPort filters out ports that can never be an Arduino/ESP32 (Bluetooth,
// debug consoles) and on Windows accepts only COM names.
func ValidPort(name string) bool {
	return validPortFor(runtime.GOOS, name)
}

func validPortFor(goos, name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range rejectPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	if goos == "windows" {
		return strings.HasPrefix(strings.ToUpper(name), "COM")
	}
	for _, p := range acceptPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// CheckPort returns ErrInvalidPort for names ValidPort rejects.
func CheckPort(name string) error {
	if !ValidPort(name) {
		return fmt.Errorf("%q: %w", name, ErrInvalidPort)
	}
	return nil
}

// ListPorts enumerates serial devices: COM ports first in numeric order,
// then macOS call-out devices, then the rest.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		desc := d.Product
		if desc == "" {
			desc = "n/a"
		}
		out = append(out, PortInfo{
			Name:         d.Name,
			Description:  desc,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			USB:          d.IsUSB,
			Valid:        ValidPort(d.Name),
		})
	}
	SortPorts(out)
	return out, nil
}

func SortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		gi, ni := portRank(ports[i].Name)
		gj, nj := portRank(ports[j].Name)
		if gi != gj {
			return gi < gj
		}
		if ni != nj {
			return ni < nj
		}
		return ports[i].Name < ports[j].Name
	})
}

func portRank(name string) (group, num int) {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "COM"):
		n, err := strconv.Atoi(upper[3:])
		if err != nil {
			n = 999
		}
		return 0, n
	case strings.HasPrefix(upper, "/DEV/CU."):
		return 1, 0
	default:
		return 2, 0
	}
}
