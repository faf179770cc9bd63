package buildevent

import (
	"encoding/json"
	"testing"
)

func TestTypeKnown(t *testing.T) {
	known := []Type{TypePassBegin, TypeProjectBegin, TypeProjectEnd, TypePassEnd, TypePassCancel}
	for _, typ := range known {
		if !typ.Known() {
			t.Errorf("Known(%q) = false, want true", typ)
		}
	}
	for _, typ := range []Type{"", "pass_pause", "solution_begin"} {
		if typ.Known() {
			t.Errorf("Known(%q) = true, want false", typ)
		}
	}
}

func TestRecognizedKind(t *testing.T) {
	for _, kind := range []string{KindBuild, KindRebuild} {
		if !RecognizedKind(kind) {
			t.Errorf("RecognizedKind(%q) = false, want true", kind)
		}
	}
	for _, kind := range []string{"", "clean", "deploy", "Build"} {
		if RecognizedKind(kind) {
			t.Errorf("RecognizedKind(%q) = true, want false", kind)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := true
	tests := []struct {
		name    string
		ev      Event
		wantErr bool
	}{
		{"pass begin", Event{Type: TypePassBegin, Solution: "App"}, false},
		{"pass begin without solution", Event{Type: TypePassBegin}, false},
		{"project begin", Event{Type: TypeProjectBegin, Project: "Core", Configuration: "Debug", Kind: KindBuild}, false},
		{"project begin missing project", Event{Type: TypeProjectBegin, Configuration: "Debug"}, true},
		{"project begin missing configuration", Event{Type: TypeProjectBegin, Project: "Core"}, true},
		{"project end", Event{Type: TypeProjectEnd, Project: "Core", Configuration: "Debug", Success: &ok}, false},
		{"project end missing success", Event{Type: TypeProjectEnd, Project: "Core", Configuration: "Debug"}, true},
		{"pass end", Event{Type: TypePassEnd}, false},
		{"pass cancel", Event{Type: TypePassCancel}, false},
		{"missing type", Event{}, true},
		{"unknown type passes", Event{Type: "pass_pause"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	in := `{"type":"project_end","project":"Core","configuration":"Release","success":false}`

	var ev Event
	if err := json.Unmarshal([]byte(in), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != TypeProjectEnd {
		t.Errorf("Type = %q, want %q", ev.Type, TypeProjectEnd)
	}
	if ev.Success == nil || *ev.Success {
		t.Errorf("Success = %v, want false", ev.Success)
	}

	// Absent success must stay distinguishable from explicit false.
	var begin Event
	if err := json.Unmarshal([]byte(`{"type":"project_begin","project":"Core","configuration":"Release","kind":"build"}`), &begin); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if begin.Success != nil {
		t.Errorf("Success = %v, want nil", begin.Success)
	}
}
