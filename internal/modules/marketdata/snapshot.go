package marketdata

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/castlegate/networth/internal/domain"
)

// snapshotEntry is the persisted form of a cache entry. FetchedAt is kept
// so restored entries still expire on their original schedule; a restart
// never launders a stale quote into a fresh one.
type snapshotEntry struct {
	Quote     domain.Quote `msgpack:"quote"`
	FetchedAt int64        `msgpack:"fetched_at"` // Unix seconds
	Class     TTLClass     `msgpack:"class"`
}

type snapshot struct {
	Entries map[string]snapshotEntry `msgpack:"entries"`
	Access  map[string]uint64        `msgpack:"access"`
}

// Snapshot serializes the cache contents and access counters with msgpack.
// Hit/miss counters are not persisted; they describe this process's
// lifetime only.
func (c *QuoteCache) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := snapshot{
		Entries: make(map[string]snapshotEntry, len(c.entries)),
		Access:  make(map[string]uint64, len(c.access)),
	}
	for symbol, e := range c.entries {
		snap.Entries[symbol] = snapshotEntry{
			Quote:     e.quote,
			FetchedAt: e.fetchedAt.Unix(),
			Class:     e.class,
		}
	}
	for symbol, n := range c.access {
		snap.Access[symbol] = n
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache snapshot: %w", err)
	}
	return data, nil
}

// RestoreSnapshot loads entries from a Snapshot dump. Existing entries for
// the same symbols are overwritten; expired entries are still restored so
// they can serve as stale fallbacks.
func (c *QuoteCache) RestoreSnapshot(data []byte) error {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode cache snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for symbol, se := range snap.Entries {
		fetchedAt := time.Unix(se.FetchedAt, 0).UTC()
		c.entries[symbol] = &entry{
			quote:      se.Quote,
			fetchedAt:  fetchedAt,
			class:      se.Class,
			lastAccess: fetchedAt,
		}
	}
	for symbol, n := range snap.Access {
		c.access[symbol] += n
	}
	c.evictOverflow()
	return nil
}

// SaveSnapshotFile writes a snapshot to path.
func (c *QuoteCache) SaveSnapshotFile(path string) error {
	data, err := c.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	return nil
}

// LoadSnapshotFile restores a snapshot from path. A missing file is not an
// error; there is simply nothing to restore.
func (c *QuoteCache) LoadSnapshotFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache snapshot: %w", err)
	}
	return c.RestoreSnapshot(data)
}
