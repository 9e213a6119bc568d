package assessment

import (
	"encoding/json"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"AboveExpectation", LevelAboveExpectation},
		{"at_expectation", LevelAtExpectation},
		{"below-expectation", LevelBelowExpectation},
		{"BELOW", LevelBelowExpectation},
		{"unknown", LevelUnknown},
		{"", LevelUnknown},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("excellent"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevel_JSONUsesNames(t *testing.T) {
	b, err := json.Marshal(struct {
		L Level `json:"l"`
	}{LevelAtExpectation})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"l":"AtExpectation"}` {
		t.Errorf("json = %s", b)
	}

	var out struct {
		L Level `json:"l"`
	}
	if err := json.Unmarshal([]byte(`{"l":"above"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.L != LevelAboveExpectation {
		t.Errorf("L = %s, want AboveExpectation", out.L)
	}
}

func TestLevel_Known(t *testing.T) {
	if LevelUnknown.Known() {
		t.Error("Unknown should not be known")
	}
	for _, l := range []Level{LevelBelowExpectation, LevelAtExpectation, LevelAboveExpectation} {
		if !l.Known() {
			t.Errorf("%s should be known", l)
		}
	}
}
