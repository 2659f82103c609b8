package purifier

import (
	"errors"
	"fmt"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// Speed is a named fan speed.
type Speed string

// Fan speeds of the supported models.
const (
	SpeedOff   Speed = "off"
	Speed1     Speed = "1"
	Speed2     Speed = "2"
	SpeedAuto  Speed = "auto"
	SpeedSleep Speed = "sleep"
	SpeedTurbo Speed = "turbo"
)

// Model identifiers.
const (
	ModelAC4236 = "AC4236"
)

// ErrUnsupportedModel indicates a model with no speed table.
var ErrUnsupportedModel = errors.New("unsupported model")

// Control is one key/value mutation to send to the device.
type Control struct {
	Key   string
	Value string
}

// Model describes how one purifier model encodes fan speeds in its
// status vocabulary.
type Model struct {
	// ID is the model identifier, e.g. "AC4236".
	ID string

	// Speeds lists the supported speeds in display order.
	Speeds []Speed

	// speedOf derives the current speed from a status snapshot.
	speedOf func(status wire.Status) Speed

	// controlFor returns the mutation that selects a speed.
	controlFor func(speed Speed) (Control, bool)
}

// SpeedOf returns the fan speed encoded in a status snapshot. An
// unrecognized combination returns the empty speed.
func (m *Model) SpeedOf(status wire.Status) Speed {
	return m.speedOf(status)
}

// ControlFor returns the control mutation selecting the given speed.
func (m *Model) ControlFor(speed Speed) (Control, error) {
	ctl, ok := m.controlFor(speed)
	if !ok {
		return Control{}, fmt.Errorf("model %s: unsupported speed %q", m.ID, speed)
	}
	return ctl, nil
}

// Supports reports whether the model knows the given speed.
func (m *Model) Supports(speed Speed) bool {
	for _, s := range m.Speeds {
		if s == speed {
			return true
		}
	}
	return false
}

var models = map[string]*Model{
	ModelAC4236: {
		ID:     ModelAC4236,
		Speeds: []Speed{SpeedOff, Speed1, Speed2, SpeedAuto, SpeedSleep, SpeedTurbo},
		speedOf: func(status wire.Status) Speed {
			power := status[KeyPower]
			mode := status[KeyMode]
			speed := status[KeySpeed]
			switch {
			case power == "0":
				return SpeedOff
			case mode == "M" && speed == "1":
				return Speed1
			case mode == "M" && speed == "2":
				return Speed2
			case mode == "AG":
				return SpeedAuto
			case mode == "S":
				return SpeedSleep
			case mode == "T":
				return SpeedTurbo
			}
			return ""
		},
		controlFor: func(speed Speed) (Control, bool) {
			switch speed {
			case SpeedOff:
				return Control{Key: KeyPower, Value: "0"}, true
			case Speed1:
				return Control{Key: KeySpeed, Value: "1"}, true
			case Speed2:
				return Control{Key: KeySpeed, Value: "2"}, true
			case SpeedAuto:
				return Control{Key: KeyMode, Value: "AG"}, true
			case SpeedSleep:
				return Control{Key: KeyMode, Value: "S"}, true
			case SpeedTurbo:
				return Control{Key: KeyMode, Value: "T"}, true
			}
			return Control{}, false
		},
	},
}

// ForModel returns the speed table for a model identifier.
func ForModel(id string) (*Model, error) {
	m, ok := models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, id)
	}
	return m, nil
}

// SupportedModels lists the known model identifiers.
func SupportedModels() []string {
	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	return ids
}
