package dispatch

import (
	"encoding/json"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{raw: "0", want: ModeBoost},
		{raw: "1", want: ModeNormal},
		{raw: "2", want: ModeQuiet},
		{raw: `"1"`, want: ModeNormal},
		{raw: `" 2 "`, want: ModeQuiet},
		{raw: "3", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "2.0", wantErr: true},
		{raw: `"quiet"`, wantErr: true},
		{raw: "true", wantErr: true},
		{raw: "null", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMode(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil {
				if KindOf(err) != KindInvalidArgument {
					t.Errorf("KindOf(err) = %q, want %q", KindOf(err), KindInvalidArgument)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestModeByName(t *testing.T) {
	tests := map[string]Mode{"boost": ModeBoost, "normal": ModeNormal, "eco": ModeQuiet, "Quiet": ModeQuiet}
	for name, want := range tests {
		got, ok := ModeByName(name)
		if !ok || got != want {
			t.Errorf("ModeByName(%q) = (%v, %v), want (%v, true)", name, got, ok, want)
		}
	}
	if _, ok := ModeByName("turbo"); ok {
		t.Error("ModeByName(turbo) ok = true")
	}
}

func TestKind_CallerError(t *testing.T) {
	for _, k := range []Kind{KindParseError, KindUnknownCommand, KindInvalidArgument} {
		if !k.CallerError() {
			t.Errorf("%q.CallerError() = false", k)
		}
	}
	for _, k := range []Kind{KindDeviceAPI, KindReauthFailure, KindUnknown} {
		if k.CallerError() {
			t.Errorf("%q.CallerError() = true", k)
		}
	}
}
