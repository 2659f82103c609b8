package purifier

import (
	"errors"
	"testing"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

func TestSpeedOfAC4236(t *testing.T) {
	m, err := ForModel(ModelAC4236)
	if err != nil {
		t.Fatalf("ForModel() error: %v", err)
	}

	tests := []struct {
		name   string
		status wire.Status
		want   Speed
	}{
		{"powered off", wire.Status{KeyPower: "0", KeyMode: "AG"}, SpeedOff},
		{"manual speed 1", wire.Status{KeyPower: "1", KeyMode: "M", KeySpeed: "1"}, Speed1},
		{"manual speed 2", wire.Status{KeyPower: "1", KeyMode: "M", KeySpeed: "2"}, Speed2},
		{"auto mode", wire.Status{KeyPower: "1", KeyMode: "AG"}, SpeedAuto},
		{"sleep mode", wire.Status{KeyPower: "1", KeyMode: "S"}, SpeedSleep},
		{"turbo mode", wire.Status{KeyPower: "1", KeyMode: "T"}, SpeedTurbo},
		{"unknown combination", wire.Status{KeyPower: "1", KeyMode: "M", KeySpeed: "9"}, Speed("")},
		{"empty status", wire.Status{}, Speed("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.SpeedOf(tt.status); got != tt.want {
				t.Errorf("SpeedOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestControlForAC4236(t *testing.T) {
	m, err := ForModel(ModelAC4236)
	if err != nil {
		t.Fatalf("ForModel() error: %v", err)
	}

	tests := []struct {
		speed Speed
		want  Control
	}{
		{SpeedOff, Control{Key: KeyPower, Value: "0"}},
		{Speed1, Control{Key: KeySpeed, Value: "1"}},
		{Speed2, Control{Key: KeySpeed, Value: "2"}},
		{SpeedAuto, Control{Key: KeyMode, Value: "AG"}},
		{SpeedSleep, Control{Key: KeyMode, Value: "S"}},
		{SpeedTurbo, Control{Key: KeyMode, Value: "T"}},
	}
	for _, tt := range tests {
		got, err := m.ControlFor(tt.speed)
		if err != nil {
			t.Errorf("ControlFor(%q) error: %v", tt.speed, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ControlFor(%q) = %+v, want %+v", tt.speed, got, tt.want)
		}
	}

	if _, err := m.ControlFor(Speed("warp")); err == nil {
		t.Error("ControlFor(warp) expected error")
	}
}

func TestSupports(t *testing.T) {
	m, _ := ForModel(ModelAC4236)
	if !m.Supports(SpeedTurbo) {
		t.Error("Supports(turbo) = false")
	}
	if m.Supports(Speed("warp")) {
		t.Error("Supports(warp) = true")
	}
}

func TestForModelUnsupported(t *testing.T) {
	_, err := ForModel("AC9999")
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("ForModel(AC9999) error = %v, want ErrUnsupportedModel", err)
	}
}

func TestSupportedModels(t *testing.T) {
	ids := SupportedModels()
	if len(ids) == 0 {
		t.Fatal("SupportedModels() is empty")
	}
	found := false
	for _, id := range ids {
		if id == ModelAC4236 {
			found = true
		}
	}
	if !found {
		t.Errorf("SupportedModels() = %v, missing %s", ids, ModelAC4236)
	}
}
