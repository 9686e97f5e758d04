package hws

import (
	"encoding/json"
	"strconv"
)

// Status is the opaque status snapshot of one heat pump as reported by the
// cloud. It is passed through to callers unchanged; the helpers below read the
// handful of well-known fields used for summaries and telemetry.
type Status map[string]any

// Well-known keys inside the last_state object.
const (
	StateKeySwitch      = "switch"
	StateKeyMode        = "mode"
	StateKeyTempCurrent = "temp_current"
	StateKeyTempSet     = "temp_set"
	StateKeyWorkState   = "work_state"
)

// LastState returns the nested last_state object, or nil.
func (s Status) LastState() map[string]any {
	ls, _ := s["last_state"].(map[string]any)
	return ls
}

// StateNumber reads a numeric last_state field. Numbers encoded as strings
// are accepted because the cloud is not consistent about it.
func (s Status) StateNumber(key string) (float64, bool) {
	return number(s.LastState()[key])
}

// CurrentTemperature returns the measured water temperature.
func (s Status) CurrentTemperature() (float64, bool) {
	return s.StateNumber(StateKeyTempCurrent)
}

// TargetTemperature returns the configured set point.
func (s Status) TargetTemperature() (float64, bool) {
	return s.StateNumber(StateKeyTempSet)
}

// IsOn reports whether the unit is switched on.
func (s Status) IsOn() bool {
	v, ok := s.StateNumber(StateKeySwitch)
	return ok && v == 1
}

// Mode returns the current operating mode (0 boost, 1 normal, 2 quiet).
func (s Status) Mode() (int, bool) {
	v, ok := s.StateNumber(StateKeyMode)
	return int(v), ok
}

// IsHeating reports whether the compressor is currently heating.
func (s Status) IsHeating() bool {
	v, ok := s.StateNumber(StateKeyWorkState)
	return ok && v == 1
}

// SerialNumber returns the unit serial number, or "".
func (s Status) SerialNumber() string {
	v, _ := s["serial_number"].(string)
	return v
}

// Brand returns the unit brand, or "".
func (s Status) Brand() string {
	v, _ := s["brand"].(string)
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
