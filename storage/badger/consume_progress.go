package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/oprf-network/oprf-node/storage"
	"github.com/oprf-network/oprf-node/storage/badger/operation"
)

// ConsumerProgress persists the cursor of one event consumer. Several consumers may share
// a database as long as their names differ.
type ConsumerProgress struct {
	db       *badger.DB
	consumer string
}

var _ storage.ConsumerProgress = (*ConsumerProgress)(nil)

func NewConsumerProgress(db *badger.DB, consumer string) *ConsumerProgress {
	return &ConsumerProgress{
		db:       db,
		consumer: consumer,
	}
}

func (cp *ConsumerProgress) ProcessedIndex() (uint64, error) {
	var next uint64
	err := cp.db.View(operation.RetrieveEventCursor(cp.consumer, &next))
	if err != nil {
		return 0, fmt.Errorf("could not read cursor of %s: %w", cp.consumer, err)
	}
	return next, nil
}

func (cp *ConsumerProgress) InitProcessedIndex(defaultIndex uint64) error {
	err := operation.RetryOnConflict(cp.db.Update, operation.InsertEventCursor(cp.consumer, defaultIndex))
	if err != nil {
		return fmt.Errorf("could not initialize cursor of %s: %w", cp.consumer, err)
	}
	return nil
}

func (cp *ConsumerProgress) SetProcessedIndex(processed uint64) error {
	err := operation.RetryOnConflict(cp.db.Update, operation.UpdateEventCursor(cp.consumer, processed))
	if err != nil {
		return fmt.Errorf("could not move cursor of %s to %d: %w", cp.consumer, processed, err)
	}
	return nil
}

func (cp *ConsumerProgress) Consumer() string {
	return cp.consumer
}
