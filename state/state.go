// Package state owns everything the pipeline persists between runs: the
// topic list, the rotation cursor, the upload log and the run lock.
package state

import (
	"context"

	"github.com/synapsedaili/youtube-automation/types"
)

// TopicSource yields the ordered topic list.
type TopicSource interface {
	Topics(ctx context.Context) ([]string, error)
}

// RotationStore persists the 1-based rotation cursor.
type RotationStore interface {
	Cursor(ctx context.Context) (int, error)
	SetCursor(ctx context.Context, cursor int) error
}

// LogStore is the append-only record of successful uploads.
type LogStore interface {
	Append(ctx context.Context, rec types.UploadRecord) error
	Records(ctx context.Context) ([]types.UploadRecord, error)
}

// Locker serialises pipeline invocations.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// NoLock is a Locker that always succeeds.
type NoLock struct{}

func (NoLock) Lock(context.Context) (func(), error) { return func() {}, nil }
