package store

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gocolly/colly/v2/storage"
	bolt "go.etcd.io/bbolt"
)

var (
	visitsBucket  = []byte("visits")
	cookiesBucket = []byte("cookies")
)

// CrawlStorage keeps colly's visited requests and cookies in BoltDB so
// cookies survive between scrapes.
type CrawlStorage struct {
	DBPath string
	db     *bolt.DB
	mu     sync.RWMutex
}

// Init opens the database; colly calls it from SetStorage.
func (s *CrawlStorage) Init() error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}

	db, err := bolt.Open(s.DBPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{visitsBucket, cookiesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create buckets: %w", err)
	}

	s.db = db
	return nil
}

func visitKey(requestID uint64) []byte {
	return strconv.AppendUint(nil, requestID, 10)
}

func (s *CrawlStorage) Visited(requestID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(visitsBucket).Put(visitKey(requestID), []byte("1"))
	})
}

func (s *CrawlStorage) IsVisited(requestID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visited bool
	err := s.db.View(func(tx *bolt.Tx) error {
		visited = tx.Bucket(visitsBucket).Get(visitKey(requestID)) != nil
		return nil
	})
	return visited, err
}

func (s *CrawlStorage) Cookies(u *url.URL) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cookies string
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cookiesBucket).Get([]byte(u.Host)); v != nil {
			cookies = string(bytes.Clone(v))
		}
		return nil
	})
	return cookies
}

func (s *CrawlStorage) SetCookies(u *url.URL, cookies string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cookiesBucket).Put([]byte(u.Host), []byte(cookies))
	})
}

// ClearVisits forgets visited requests and keeps cookies. Listing pages
// change daily, so every scrape starts with an empty visit set.
func (s *CrawlStorage) ClearVisits() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(visitsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(visitsBucket)
		return err
	})
}

func (s *CrawlStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

var _ storage.Storage = (*CrawlStorage)(nil)
