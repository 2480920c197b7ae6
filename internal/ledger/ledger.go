// Package ledger derives per-address voting bookkeeping from a meme snapshot.
package ledger

import "github.com/timmy/memevote/internal/domain"

// Ledger answers vote-count and has-created questions for one snapshot.
// It holds no state of its own and never caches across snapshots.
type Ledger struct {
	memes []domain.Meme
}

// New returns a ledger over memes. The slice is read, never modified.
func New(memes []domain.Meme) Ledger {
	return Ledger{memes: memes}
}

// VoteCountOf counts the memes whose voters include address.
func (l Ledger) VoteCountOf(address string) int {
	addr := domain.NormalizeAddress(address)
	if addr == "" {
		return 0
	}
	count := 0
	for i := range l.memes {
		for _, voter := range l.memes[i].Voters {
			if domain.NormalizeAddress(voter) == addr {
				count++
				break
			}
		}
	}
	return count
}

// CreatedCount counts the memes created by address.
func (l Ledger) CreatedCount(address string) int {
	addr := domain.NormalizeAddress(address)
	if addr == "" {
		return 0
	}
	count := 0
	for i := range l.memes {
		if domain.NormalizeAddress(l.memes[i].CreatorAddress) == addr {
			count++
		}
	}
	return count
}

// HasCreated reports whether address created any meme.
func (l Ledger) HasCreated(address string) bool {
	return l.CreatedCount(address) > 0
}
