// Package buildevent defines the JSON contract for build lifecycle
// notifications posted by IDE plugins to the logger daemon.
//
// A build pass is bracketed by pass_begin and pass_end (or pass_cancel),
// with any number of project_begin / project_end pairs in between. The
// daemon correlates these into per-project build records; plugins only
// need to forward the host IDE's build callbacks one event at a time.
package buildevent

import "fmt"

// Type names one kind of lifecycle notification.
type Type string

const (
	// TypePassBegin opens a build pass for a solution.
	TypePassBegin Type = "pass_begin"
	// TypeProjectBegin marks the start of one project build within a pass.
	TypeProjectBegin Type = "project_begin"
	// TypeProjectEnd marks the completion of one project build.
	TypeProjectEnd Type = "project_end"
	// TypePassEnd closes a build pass and releases its records for delivery.
	TypePassEnd Type = "pass_end"
	// TypePassCancel aborts a build pass, discarding its records.
	TypePassCancel Type = "pass_cancel"
)

// Build kinds that produce records. Other kinds (clean, deploy, ...) are
// accepted on the wire and ignored by the daemon.
const (
	KindBuild   = "build"
	KindRebuild = "rebuild"
)

// RecognizedKind reports whether kind is one the daemon records.
func RecognizedKind(kind string) bool {
	return kind == KindBuild || kind == KindRebuild
}

// Known reports whether t is part of the event vocabulary. Unknown types
// are not an error: the daemon accepts and ignores them so that newer
// plugins can talk to older daemons.
func (t Type) Known() bool {
	switch t {
	case TypePassBegin, TypeProjectBegin, TypeProjectEnd, TypePassEnd, TypePassCancel:
		return true
	}
	return false
}

// Event is a single lifecycle notification. Field requirements depend on
// Type; see Validate.
type Event struct {
	Type Type `json:"type"`

	// Solution is the solution (workspace) name. Read on pass_begin.
	Solution string `json:"solution,omitempty"`

	// Project and Configuration identify one project build within the
	// pass. Both are required on project_begin and project_end.
	Project       string `json:"project,omitempty"`
	Configuration string `json:"configuration,omitempty"`

	// Kind is the host build action for project_begin: "build",
	// "rebuild", or any other action string the IDE reports.
	Kind string `json:"kind,omitempty"`

	// Success carries the project build outcome on project_end.
	Success *bool `json:"success,omitempty"`
}

// Validate checks that the fields required for the event's type are
// present. Events of unknown type validate successfully; they are
// filtered later rather than rejected at the door.
func (e Event) Validate() error {
	switch e.Type {
	case "":
		return fmt.Errorf("event type is required")
	case TypeProjectBegin:
		if e.Project == "" {
			return fmt.Errorf("%s: project is required", e.Type)
		}
		if e.Configuration == "" {
			return fmt.Errorf("%s: configuration is required", e.Type)
		}
	case TypeProjectEnd:
		if e.Project == "" {
			return fmt.Errorf("%s: project is required", e.Type)
		}
		if e.Configuration == "" {
			return fmt.Errorf("%s: configuration is required", e.Type)
		}
		if e.Success == nil {
			return fmt.Errorf("%s: success is required", e.Type)
		}
	}
	return nil
}
