package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/events"
	"github.com/timmy/memevote/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) recorded() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// faultyBackend wraps a backend and fails reads or writes on demand.
type faultyBackend struct {
	repository.Backend
	mu        sync.Mutex
	failRead  map[repository.DocumentName]bool
	failWrite bool
}

var errDisk = errors.New("disk on fire")

func (b *faultyBackend) Read(ctx context.Context, name repository.DocumentName) ([]byte, error) {
	b.mu.Lock()
	fail := b.failRead[name]
	b.mu.Unlock()
	if fail {
		return nil, errDisk
	}
	return b.Backend.Read(ctx, name)
}

func (b *faultyBackend) Write(ctx context.Context, name repository.DocumentName, data []byte) error {
	b.mu.Lock()
	fail := b.failWrite
	b.mu.Unlock()
	if fail {
		return errDisk
	}
	return b.Backend.Write(ctx, name, data)
}

type fixture struct {
	fs        afero.Fs
	backend   *faultyBackend
	store     *repository.DocumentStore
	allowlist *AllowlistService
	svc       *VotingService
	pub       *recordingPublisher
}

func newFixture(t *testing.T, eligible ...string) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	fileBackend, err := repository.NewFileBackend(fs, "/data")
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	backend := &faultyBackend{Backend: fileBackend, failRead: map[repository.DocumentName]bool{}}
	store := repository.NewDocumentStore(backend)

	if eligible != nil {
		doc := &domain.EligibilityDocument{EligibleAddresses: eligible}
		if err := store.SaveEligibility(context.Background(), doc); err != nil {
			t.Fatalf("SaveEligibility: %v", err)
		}
	}

	pub := &recordingPublisher{}
	svc := NewVotingService(store, NewEligibilityOracle(store), pub, nil, nil, &VotingConfig{VoteLimit: 2, CreateLimit: 1})

	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("meme-%d", seq)
	}
	svc.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}

	return &fixture{
		fs:        fs,
		backend:   backend,
		store:     store,
		allowlist: NewAllowlistService(store),
		svc:       svc,
		pub:       pub,
	}
}

// seedMemes writes memes directly, bypassing the service checks.
func (f *fixture) seedMemes(t *testing.T, memes ...domain.Meme) {
	t.Helper()
	for i := range memes {
		if memes[i].Voters == nil {
			memes[i].Voters = []string{}
		}
	}
	if err := f.store.SaveMemes(context.Background(), &domain.MemeDocument{Memes: memes}); err != nil {
		t.Fatalf("SaveMemes: %v", err)
	}
}

func (f *fixture) memes(t *testing.T) []domain.Meme {
	t.Helper()
	doc, err := f.store.LoadMemes(context.Background())
	if err != nil {
		t.Fatalf("LoadMemes: %v", err)
	}
	return doc.Memes
}

func assertInvariants(t *testing.T, memes []domain.Meme, voteLimit int) {
	t.Helper()
	perVoter := map[string]int{}
	perCreator := map[string]int{}
	for _, m := range memes {
		if m.Votes != len(m.Voters) {
			t.Errorf("meme %s: votes=%d but %d voters", m.ID, m.Votes, len(m.Voters))
		}
		seen := map[string]bool{}
		for _, v := range m.Voters {
			if seen[v] {
				t.Errorf("meme %s: voter %s recorded twice", m.ID, v)
			}
			seen[v] = true
			perVoter[v]++
		}
		perCreator[m.CreatorAddress]++
	}
	for addr, n := range perVoter {
		if n > voteLimit {
			t.Errorf("address %s voted %d times, limit %d", addr, n, voteLimit)
		}
	}
	for addr, n := range perCreator {
		if n > 1 {
			t.Errorf("address %s created %d memes", addr, n)
		}
	}
}
