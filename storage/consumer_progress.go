package storage

// ConsumerProgress stores the position of an event consumer, such as the next block the
// key event watcher scans for registry events.
type ConsumerProgress interface {
	// ProcessedIndex returns the stored position.
	// Expected errors:
	//   - storage.ErrNotFound if the consumer has not been initialized
	ProcessedIndex() (uint64, error)

	// InitProcessedIndex stores the initial position. It is called once per consumer.
	// Expected errors:
	//   - storage.ErrAlreadyExists if the consumer has already been initialized
	InitProcessedIndex(defaultIndex uint64) error

	// SetProcessedIndex replaces the stored position. Fails if the consumer was never initialized.
	SetProcessedIndex(processed uint64) error

	// Consumer returns the consumer's name.
	Consumer() string
}
