// Package ledger records which page content has already been delivered so
// that repeated webhooks do not append the same paper twice.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketDeliveries = "deliveries"

// Entry is one completed delivery.
type Entry struct {
	PageID      string    `json:"page_id"`
	ContentHash string    `json:"content_hash"`
	JobID       string    `json:"job_id"`
	Blocks      int       `json:"blocks"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Ledger is a bbolt-backed delivery record keyed by page id and content
// hash.
type Ledger struct {
	db *bolt.DB
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketDeliveries))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Hash fingerprints converter input.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func key(pageID, hash string) []byte {
	return []byte(pageID + "/" + hash)
}

// Seen looks up a delivery of the given content to pageID.
func (l *Ledger) Seen(pageID, hash string) (Entry, bool, error) {
	var e Entry
	var found bool
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketDeliveries)).Get(key(pageID, hash))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("read ledger: %w", err)
	}
	return e, found, nil
}

// Record stores a completed delivery, replacing any earlier record of the
// same content.
func (l *Ledger) Record(e Entry) error {
	if e.DeliveredAt.IsZero() {
		e.DeliveredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDeliveries)).Put(key(e.PageID, e.ContentHash), data)
	})
}

// List returns the deliveries to pageID, or to every page when pageID is
// empty, oldest first.
func (l *Ledger) List(pageID string) ([]Entry, error) {
	var prefix []byte
	if pageID != "" {
		prefix = []byte(pageID + "/")
	}

	entries := []Entry{}
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketDeliveries)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DeliveredAt.Before(entries[j].DeliveredAt)
	})
	return entries, nil
}

// Forget drops every record for pageID so that its content can be
// delivered again. It reports how many records were removed.
func (l *Ledger) Forget(pageID string) (int, error) {
	prefix := []byte(pageID + "/")
	n := 0
	err := l.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketDeliveries)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
