package dispatch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Mode is the operating mode of a heat pump.
type Mode int

const (
	ModeBoost  Mode = 0
	ModeNormal Mode = 1
	ModeQuiet  Mode = 2
)

// errInvalidMode is the caller-visible message for any bad mode value.
const errInvalidMode = "Invalid mode"

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeBoost:
		return "boost"
	case ModeNormal:
		return "normal"
	case ModeQuiet:
		return "quiet"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m >= ModeBoost && m <= ModeQuiet
}

// ParseMode decodes a raw mode parameter. It accepts a JSON integer or a
// string holding one; anything else, including 1.5 and out-of-range values,
// is an InvalidArgument error.
func ParseMode(raw json.RawMessage) (Mode, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, InvalidArgument(errInvalidMode)
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, InvalidArgument(errInvalidMode)
		}
		text = strings.TrimSpace(s)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, InvalidArgument(errInvalidMode)
	}

	m := Mode(n)
	if !m.Valid() {
		return 0, InvalidArgument(errInvalidMode)
	}
	return m, nil
}

// ModeByName maps the one-shot CLI action names onto modes. "eco" is the
// name the vendor app uses for quiet.
func ModeByName(name string) (Mode, bool) {
	switch strings.ToLower(name) {
	case "boost":
		return ModeBoost, true
	case "normal":
		return ModeNormal, true
	case "quiet", "eco":
		return ModeQuiet, true
	default:
		return 0, false
	}
}
