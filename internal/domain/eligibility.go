package domain

import "strings"

// EligibilityDocument is the persisted allowlist. Addresses are lower-case at rest.
type EligibilityDocument struct {
	EligibleAddresses []string `json:"eligibleAddresses"`
}

// EligibilitySet is a lookup set built from one EligibilityDocument snapshot.
type EligibilitySet map[string]struct{}

// NewEligibilitySet normalizes every address in doc into a set.
func NewEligibilitySet(doc *EligibilityDocument) EligibilitySet {
	set := make(EligibilitySet)
	if doc == nil {
		return set
	}
	for _, addr := range doc.EligibleAddresses {
		if n := NormalizeAddress(addr); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Contains reports whether address is a member, case-insensitively.
func (s EligibilitySet) Contains(address string) bool {
	_, ok := s[NormalizeAddress(address)]
	return ok
}

// EligibilityStatus answers what an address may still do.
type EligibilityStatus struct {
	Address        string `json:"address"`
	CanCreate      bool   `json:"canCreate"`
	CanVote        bool   `json:"canVote"`
	VoteCount      int    `json:"voteCount"`
	RemainingVotes int    `json:"remainingVotes"`
	VoteLimit      int    `json:"voteLimit"`
	HasCreatedMeme bool   `json:"hasCreatedMeme"`
}

// NormalizeAddress trims and lower-cases an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
