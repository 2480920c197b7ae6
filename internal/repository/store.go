package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/logger"
)

// DocumentName identifies one persisted document.
type DocumentName string

const (
	EligibilityDocumentName DocumentName = "eligible-addresses"
	MemeDocumentName        DocumentName = "memes"
)

var (
	// ErrDocumentNotFound is returned when a document has never been written.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentCorrupt is returned when a stored document cannot be decoded.
	ErrDocumentCorrupt = errors.New("document corrupt")
)

// Backend persists whole documents as opaque bytes. There is no partial update.
type Backend interface {
	// Read returns the stored bytes or ErrDocumentNotFound.
	Read(ctx context.Context, name DocumentName) ([]byte, error)

	// Write replaces the stored bytes. A reader never observes a partial write.
	Write(ctx context.Context, name DocumentName, data []byte) error

	// Close releases backend resources.
	Close() error
}

// Observer receives timing for every document operation.
type Observer interface {
	ObserveDocumentOp(document, op string, elapsed time.Duration, err error)
}

// DocumentStore is the typed document layer over a Backend.
// Each document has a single writer at a time: Update* and Save* hold the
// document's write lock, Load* hold its read lock. When both locks are
// needed the meme lock is taken first.
type DocumentStore struct {
	backend  Backend
	observer Observer
	locks    map[DocumentName]*sync.RWMutex
}

// NewDocumentStore creates a store over backend.
// Parameters:
//   - backend: byte-level persistence for the documents.
//
// Returns:
//   - *DocumentStore: store guarding each document with its own lock.
func NewDocumentStore(backend Backend) *DocumentStore {
	return &DocumentStore{
		backend: backend,
		locks: map[DocumentName]*sync.RWMutex{
			EligibilityDocumentName: {},
			MemeDocumentName:        {},
		},
	}
}

// SetObserver installs an observer for document operation timings.
func (s *DocumentStore) SetObserver(o Observer) {
	s.observer = o
}

// Close closes the underlying backend.
func (s *DocumentStore) Close() error {
	return s.backend.Close()
}

// LoadEligibility reads the eligibility document.
func (s *DocumentStore) LoadEligibility(ctx context.Context) (*domain.EligibilityDocument, error) {
	lock := s.locks[EligibilityDocumentName]
	lock.RLock()
	defer lock.RUnlock()

	var doc domain.EligibilityDocument
	if err := s.load(ctx, EligibilityDocumentName, &doc); err != nil {
		return nil, err
	}
	if doc.EligibleAddresses == nil {
		doc.EligibleAddresses = []string{}
	}
	return &doc, nil
}

// SaveEligibility replaces the eligibility document.
func (s *DocumentStore) SaveEligibility(ctx context.Context, doc *domain.EligibilityDocument) error {
	lock := s.locks[EligibilityDocumentName]
	lock.Lock()
	defer lock.Unlock()
	return s.save(ctx, EligibilityDocumentName, doc)
}

// UpdateEligibility runs a read-modify-write cycle on the eligibility document.
// A missing document starts out empty. Nothing is written if fn returns an error.
func (s *DocumentStore) UpdateEligibility(ctx context.Context, fn func(doc *domain.EligibilityDocument) error) error {
	lock := s.locks[EligibilityDocumentName]
	lock.Lock()
	defer lock.Unlock()

	var doc domain.EligibilityDocument
	if err := s.load(ctx, EligibilityDocumentName, &doc); err != nil && !errors.Is(err, ErrDocumentNotFound) {
		return err
	}
	if doc.EligibleAddresses == nil {
		doc.EligibleAddresses = []string{}
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(ctx, EligibilityDocumentName, &doc)
}

// LoadMemes reads the meme document.
func (s *DocumentStore) LoadMemes(ctx context.Context) (*domain.MemeDocument, error) {
	lock := s.locks[MemeDocumentName]
	lock.RLock()
	defer lock.RUnlock()

	var doc domain.MemeDocument
	if err := s.load(ctx, MemeDocumentName, &doc); err != nil {
		return nil, err
	}
	normalizeMemeDocument(&doc)
	return &doc, nil
}

// SaveMemes replaces the meme document.
func (s *DocumentStore) SaveMemes(ctx context.Context, doc *domain.MemeDocument) error {
	lock := s.locks[MemeDocumentName]
	lock.Lock()
	defer lock.Unlock()
	return s.save(ctx, MemeDocumentName, doc)
}

// UpdateMemes runs a read-modify-write cycle on the meme document under its
// write lock. A missing document starts out empty. Nothing is written if fn
// returns an error, so a failed check leaves no trace.
func (s *DocumentStore) UpdateMemes(ctx context.Context, fn func(doc *domain.MemeDocument) error) error {
	lock := s.locks[MemeDocumentName]
	lock.Lock()
	defer lock.Unlock()

	var doc domain.MemeDocument
	if err := s.load(ctx, MemeDocumentName, &doc); err != nil && !errors.Is(err, ErrDocumentNotFound) {
		return err
	}
	normalizeMemeDocument(&doc)
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(ctx, MemeDocumentName, &doc)
}

func (s *DocumentStore) load(ctx context.Context, name DocumentName, v interface{}) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, name, "load", start, err) }()

	data, err := s.backend.Read(ctx, name)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return err
		}
		return fmt.Errorf("failed to read document %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDocumentCorrupt, name, err)
	}
	return nil
}

func (s *DocumentStore) save(ctx context.Context, name DocumentName, v interface{}) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, name, "save", start, err) }()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", name, err)
	}
	if err := s.backend.Write(ctx, name, data); err != nil {
		return fmt.Errorf("failed to write document %s: %w", name, err)
	}
	return nil
}

func (s *DocumentStore) observe(ctx context.Context, name DocumentName, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveDocumentOp(string(name), op, elapsed, err)
	}
	logger.With(logger.Fields{logger.FieldDocument: string(name)}).
		WithDuration(elapsed).
		Debug(ctx, "Document %s finished", op)
}

func normalizeMemeDocument(doc *domain.MemeDocument) {
	if doc.Memes == nil {
		doc.Memes = []domain.Meme{}
	}
	for i := range doc.Memes {
		if doc.Memes[i].Voters == nil {
			doc.Memes[i].Voters = []string{}
		}
	}
}
