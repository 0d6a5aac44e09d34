package watcher

import (
	"time"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

type FileEvent struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// BatchKind classifies a flushed batch so the handler can tell a
// stray touched file from a bulk restore of the data directory.
type BatchKind int

const (
	BatchSingle BatchKind = iota
	BatchSmall
	BatchBulk
)

func ClassifyBatch(events []FileEvent) BatchKind {
	switch {
	case len(events) > 10:
		return BatchBulk
	case len(events) >= 3:
		return BatchSmall
	default:
		return BatchSingle
	}
}
