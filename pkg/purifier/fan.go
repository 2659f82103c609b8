package purifier

import (
	"context"

	"github.com/mertbulan/philips-airpurifier/pkg/airctrl"
)

// Fan drives one purifier as a fan with named speeds. It wraps an
// airctrl.Client with the speed table of the device's model.
type Fan struct {
	client *airctrl.Client
	model  *Model
}

// NewFan wraps an existing client with the speed table for modelID.
func NewFan(client *airctrl.Client, modelID string) (*Fan, error) {
	model, err := ForModel(modelID)
	if err != nil {
		return nil, err
	}
	return &Fan{client: client, model: model}, nil
}

// Client returns the underlying device client.
func (f *Fan) Client() *airctrl.Client {
	return f.client
}

// Model returns the speed table of this fan's device model.
func (f *Fan) Model() *Model {
	return f.model
}

// IsOn reports whether the purifier is powered on, based on the last
// seen status.
func (f *Fan) IsOn() bool {
	return f.client.CurrentStatus()[KeyPower] == "1"
}

// Speed returns the current fan speed, based on the last seen status.
func (f *Fan) Speed() Speed {
	return f.model.SpeedOf(f.client.CurrentStatus())
}

// Attributes returns the named attributes of the last seen status.
func (f *Fan) Attributes() map[string]string {
	return Attributes(f.client.CurrentStatus())
}

// TurnOn powers the purifier on.
func (f *Fan) TurnOn(ctx context.Context) error {
	return f.client.SendControl(ctx, KeyPower, "1")
}

// TurnOff powers the purifier off.
func (f *Fan) TurnOff(ctx context.Context) error {
	return f.client.SendControl(ctx, KeyPower, "0")
}

// SetSpeed selects a named fan speed. Selecting a speed while the
// purifier is off powers it on first; SpeedOff powers it off.
func (f *Fan) SetSpeed(ctx context.Context, speed Speed) error {
	if speed == SpeedOff {
		return f.TurnOff(ctx)
	}

	ctl, err := f.model.ControlFor(speed)
	if err != nil {
		return err
	}

	if !f.IsOn() {
		if err := f.TurnOn(ctx); err != nil {
			return err
		}
	}
	return f.client.SendControl(ctx, ctl.Key, ctl.Value)
}
