// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrStoreClosed is returned when appending to a closed store.
	ErrStoreClosed = errors.New("performance store closed")
	// ErrStoreFull is returned when the writer is too far behind to queue
	// another sample. The sample is dropped.
	ErrStoreFull = errors.New("performance store queue full")
)

const storeQueueSize = 256

// DefaultMaxEntries is the number of samples kept per monthly file.
const DefaultMaxEntries = 50000

type storeRequest struct {
	sample Sample
	flush  chan struct{}
}

// Store persists samples to {dir}/{projectId}-{YYYY}-{MM}.json. Every write
// goes through a single writer goroutine and replaces the file atomically.
// The store assumes it is the only writer of dir.
type Store struct {
	dir        string
	maxEntries int

	mu     sync.Mutex
	closed bool
	reqs   chan storeRequest
	done   chan struct{}
}

// NewStore creates dir if needed and starts the writer.
func NewStore(dir string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating performance directory: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Store{
		dir:        dir,
		maxEntries: maxEntries,
		reqs:       make(chan storeRequest, storeQueueSize),
		done:       make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Dir returns the directory holding the monthly files.
func (s *Store) Dir() string {
	return s.dir
}

// Append queues a sample for persistence without waiting for the disk.
func (s *Store) Append(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	select {
	case s.reqs <- storeRequest{sample: sample}:
		return nil
	default:
		return ErrStoreFull
	}
}

// Flush blocks until every sample queued before the call is on disk.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	s.reqs <- storeRequest{flush: ch}
	s.mu.Unlock()
	<-ch
}

// Close writes pending samples and stops the writer.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.reqs)
	s.mu.Unlock()
	<-s.done
}

func (s *Store) writer() {
	defer close(s.done)

	for req := range s.reqs {
		pending := make(map[string][]Sample)
		var waiters []chan struct{}
		add := func(r storeRequest) {
			if r.flush != nil {
				waiters = append(waiters, r.flush)
				return
			}
			path := s.path(r.sample.ProjectID, r.sample.Timestamp)
			pending[path] = append(pending[path], r.sample)
		}
		add(req)

		// Batch whatever else is already queued
	drain:
		for {
			select {
			case r, ok := <-s.reqs:
				if !ok {
					break drain
				}
				add(r)
			default:
				break drain
			}
		}

		for path, samples := range pending {
			if err := s.appendFile(path, samples); err != nil {
				log.Printf("Performance history write failed for %s: %v", path, err)
			}
		}
		for _, w := range waiters {
			close(w)
		}
	}
}

func (s *Store) appendFile(path string, samples []Sample) error {
	existing, err := readSamples(path)
	if err != nil {
		// A corrupt file is replaced rather than blocking all future writes
		log.Printf("Performance history unreadable, starting over: %s: %v", path, err)
		existing = nil
	}
	all := append(existing, samples...)
	if len(all) > s.maxEntries {
		all = all[len(all)-s.maxEntries:]
	}

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshaling samples: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readSamples(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parsing samples: %w", err)
	}
	return samples, nil
}

func (s *Store) path(projectID string, t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%04d-%02d.json", projectID, t.Year(), int(t.Month())))
}

// LoadRange returns persisted samples of projectID with timestamps in
// [start, end], oldest first. A zero start means the earliest period and a
// zero end means now.
//
// Files are named after the month of the timestamp as it was recorded, which
// may be in another zone than start and end, so the neighbouring months are
// read too.
func (s *Store) LoadRange(projectID string, start, end time.Time) ([]Sample, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		periods, err := s.Periods(projectID)
		if err != nil {
			return nil, err
		}
		if len(periods) == 0 {
			return nil, nil
		}
		start = time.Date(periods[0].Year, time.Month(periods[0].Month), 1, 0, 0, 0, 0, time.Local)
	}
	if end.Before(start) {
		return nil, nil
	}

	first, last := start.Local(), end.Local()
	var out []Sample
	month := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, -1, 0)
	stop := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, 1, 0)
	for !month.After(stop) {
		samples, err := readSamples(s.path(projectID, month))
		if err != nil {
			log.Printf("Skipping unreadable performance history %s: %v", s.path(projectID, month), err)
		}
		for _, sample := range samples {
			if sample.Timestamp.Before(start) || sample.Timestamp.After(end) {
				continue
			}
			out = append(out, sample)
		}
		month = month.AddDate(0, 1, 0)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Periods lists the months with persisted samples for projectID, oldest
// first.
func (s *Store) Periods(projectID string) ([]Period, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading performance directory: %w", err)
	}

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(projectID) + `-(\d{4})-(\d{2})\.json$`)
	var periods []Period
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			continue
		}
		periods = append(periods, Period{Year: year, Month: month})
	}

	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year < periods[j].Year
		}
		return periods[i].Month < periods[j].Month
	})
	return periods, nil
}
