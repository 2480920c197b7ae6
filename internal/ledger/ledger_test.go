package ledger

import (
	"testing"

	"github.com/timmy/memevote/internal/domain"
)

func snapshot() []domain.Meme {
	return []domain.Meme{
		{ID: "m1", CreatorAddress: "0xaaa", Votes: 2, Voters: []string{"0xbbb", "0xccc"}},
		{ID: "m2", CreatorAddress: "0xbbb", Votes: 1, Voters: []string{"0xBBB"}},
		{ID: "m3", CreatorAddress: "0xddd", Votes: 0, Voters: []string{}},
	}
}

func TestVoteCountOf(t *testing.T) {
	l := New(snapshot())

	tests := []struct {
		name    string
		address string
		want    int
	}{
		{name: "two votes across memes", address: "0xbbb", want: 2},
		{name: "case insensitive", address: "0xBbB", want: 2},
		{name: "single vote", address: "0xccc", want: 1},
		{name: "creator without votes", address: "0xaaa", want: 0},
		{name: "unknown address", address: "0xeee", want: 0},
		{name: "empty address", address: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.VoteCountOf(tt.address); got != tt.want {
				t.Errorf("VoteCountOf(%q) = %d, want %d", tt.address, got, tt.want)
			}
		})
	}
}

func TestHasCreated(t *testing.T) {
	l := New(snapshot())

	if !l.HasCreated("0xAAA") {
		t.Error("expected 0xAAA to have created a meme")
	}
	if l.HasCreated("0xccc") {
		t.Error("expected 0xccc to have created nothing")
	}
	if l.HasCreated("") {
		t.Error("empty address must never match")
	}
	if got := l.CreatedCount("0xddd"); got != 1 {
		t.Errorf("CreatedCount = %d, want 1", got)
	}
}

func TestEmptySnapshot(t *testing.T) {
	l := New(nil)
	if l.VoteCountOf("0xaaa") != 0 || l.HasCreated("0xaaa") {
		t.Error("empty snapshot should report nothing")
	}
}
