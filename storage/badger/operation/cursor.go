package operation

import (
	"github.com/dgraph-io/badger/v2"
)

// InsertEventCursor stores the initial cursor of the named event consumer.
func InsertEventCursor(consumer string, next uint64) func(*badger.Txn) error {
	return insert(makePrefix(codeEventCursor, consumer), next)
}

// UpdateEventCursor moves the cursor of the named event consumer.
func UpdateEventCursor(consumer string, next uint64) func(*badger.Txn) error {
	return update(makePrefix(codeEventCursor, consumer), next)
}

func RetrieveEventCursor(consumer string, next *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeEventCursor, consumer), next)
}
