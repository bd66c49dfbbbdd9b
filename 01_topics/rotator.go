package topics

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/state"
	"github.com/synapsedaili/youtube-automation/types"
)

// Selection is the topic served by one NextTopic call.
type Selection struct {
	Topic string `json:"topic"`
	Index int    `json:"index"` // 0-based position in the list
	Count int    `json:"count"`
}

// Rotator walks a topic list cyclically using a persisted cursor.
// NextTopic never writes; only Advance moves the cursor.
type Rotator struct {
	topics state.TopicSource
	store  state.RotationStore
	log    *log.Logger
}

func NewRotator(topics state.TopicSource, store state.RotationStore, logger *log.Logger) *Rotator {
	return &Rotator{
		topics: topics,
		store:  store,
		log:    logging.OrDefault(logger, "topics"),
	}
}

// NextTopic returns the topic under the cursor. Calling it repeatedly without
// Advance returns the same topic.
func (r *Rotator) NextTopic(ctx context.Context) (Selection, error) {
	list, cursor, err := r.load(ctx)
	if err != nil {
		return Selection{}, err
	}
	idx := servedIndex(cursor, len(list))
	sel := Selection{Topic: list[idx], Index: idx, Count: len(list)}
	r.log.Info("selected topic", "topic", sel.Topic, "position", fmt.Sprintf("%d/%d", idx+1, len(list)))
	return sel, nil
}

// Advance moves the cursor one step past the topic NextTopic currently serves.
func (r *Rotator) Advance(ctx context.Context) error {
	list, cursor, err := r.load(ctx)
	if err != nil {
		return err
	}
	next := nextCursor(cursor, len(list))
	if err := r.store.SetCursor(ctx, next); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	r.log.Info("advanced rotation", "cursor", next)
	return nil
}

func (r *Rotator) load(ctx context.Context) ([]string, int, error) {
	list, err := r.topics.Topics(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(list) == 0 {
		return nil, 0, fmt.Errorf("%w: topic list is empty", types.ErrConfiguration)
	}
	cursor, err := r.store.Cursor(ctx)
	if err != nil {
		return nil, 0, err
	}
	return list, cursor, nil
}

// servedIndex maps a 1-based cursor onto [0, n).
func servedIndex(cursor, n int) int {
	return ((cursor-1)%n + n) % n
}

// nextCursor is the 1-based cursor of the topic after the served one.
func nextCursor(cursor, n int) int {
	return (servedIndex(cursor, n)+1)%n + 1
}
