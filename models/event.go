package models

import "time"

// ChangeKind is the type of filesystem change carried by a ChangeEvent.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeModified
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeSource tags where a ChangeEvent came from.
type ChangeSource int

const (
	// SourceNotification means the event came from an OS-level notification.
	SourceNotification ChangeSource = iota
	// SourceScanDiff means the event was produced by a reconciliation scan.
	SourceScanDiff
)

func (s ChangeSource) String() string {
	switch s {
	case SourceNotification:
		return "os-notification"
	case SourceScanDiff:
		return "scan-diff"
	default:
		return "unknown"
	}
}

// ChangeEvent is an ephemeral record of a detected filesystem change.
// Events for the same path within one batch collapse to the most recent kind.
type ChangeEvent struct {
	Path       string
	Kind       ChangeKind
	DetectedAt time.Time
	Source     ChangeSource
}
