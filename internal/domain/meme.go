package domain

import (
	"slices"
	"time"
)

// Meme is a user-submitted entry that eligible addresses vote on.
// Votes always equals len(Voters); both change only through an accepted vote.
type Meme struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ImageURL       string    `json:"imageUrl"`
	CreatorAddress string    `json:"creatorAddress"`
	Votes          int       `json:"votes"`
	Voters         []string  `json:"voters"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HasVoter reports whether address voted for this meme. Stored voters are
// compared in normalized form, matching the ledger's vote count.
func (m *Meme) HasVoter(address string) bool {
	addr := NormalizeAddress(address)
	return slices.ContainsFunc(m.Voters, func(v string) bool {
		return NormalizeAddress(v) == addr
	})
}

// AddVote records a vote from address. Callers check HasVoter first.
func (m *Meme) AddVote(address string) {
	m.Votes++
	m.Voters = append(m.Voters, address)
}

// Clone returns a deep copy so views never alias a stored snapshot.
func (m Meme) Clone() Meme {
	m.Voters = slices.Clone(m.Voters)
	if m.Voters == nil {
		m.Voters = []string{}
	}
	return m
}

// MemeView is a meme annotated with its share of all votes.
// VotePercentage is derived on every read and never persisted.
type MemeView struct {
	Meme
	VotePercentage float64 `json:"votePercentage"`
}

// MemeDocument is the persisted meme collection, in display order.
type MemeDocument struct {
	Memes []Meme `json:"memes"`
}

// Find returns the meme with the given id, or nil.
func (d *MemeDocument) Find(id string) *Meme {
	for i := range d.Memes {
		if d.Memes[i].ID == id {
			return &d.Memes[i]
		}
	}
	return nil
}

// TotalVotes sums the vote counters of every meme.
func (d *MemeDocument) TotalVotes() int {
	total := 0
	for _, m := range d.Memes {
		total += m.Votes
	}
	return total
}
