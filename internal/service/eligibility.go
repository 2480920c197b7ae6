package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/repository"
)

// EligibilityOracle answers whether an address is on the allowlist.
type EligibilityOracle struct {
	store *repository.DocumentStore
}

// NewEligibilityOracle creates an oracle reading the allowlist from store.
func NewEligibilityOracle(store *repository.DocumentStore) *EligibilityOracle {
	return &EligibilityOracle{store: store}
}

// IsEligible reports whether address is allowed to vote and create.
// The allowlist is re-read on every call. A missing or unreadable allowlist
// means nobody is eligible.
func (o *EligibilityOracle) IsEligible(ctx context.Context, address string) bool {
	addr := domain.NormalizeAddress(address)
	if addr == "" {
		return false
	}

	doc, err := o.store.LoadEligibility(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			logger.CtxWarn(ctx, "Eligibility list has not been created, nobody is eligible")
		} else {
			logger.FromContext(ctx).WithError(err).Warn("Failed to load eligibility list, nobody is eligible")
		}
		return false
	}

	return domain.NewEligibilitySet(doc).Contains(addr)
}

// AllowlistService manages the eligibility document.
type AllowlistService struct {
	store *repository.DocumentStore
}

// NewAllowlistService creates an allowlist manager over store.
func NewAllowlistService(store *repository.DocumentStore) *AllowlistService {
	return &AllowlistService{store: store}
}

// List returns the stored allowlist. A list that was never written is empty.
func (s *AllowlistService) List(ctx context.Context) (*domain.EligibilityDocument, error) {
	doc, err := s.store.LoadEligibility(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return &domain.EligibilityDocument{EligibleAddresses: []string{}}, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return doc, nil
}

// Add normalizes addresses and appends those not already present.
// Returns the number of addresses added.
func (s *AllowlistService) Add(ctx context.Context, addresses ...string) (int, error) {
	added := 0
	err := s.store.UpdateEligibility(ctx, func(doc *domain.EligibilityDocument) error {
		set := domain.NewEligibilitySet(doc)
		for _, a := range addresses {
			addr := domain.NormalizeAddress(a)
			if addr == "" || set.Contains(addr) {
				continue
			}
			set[addr] = struct{}{}
			doc.EligibleAddresses = append(doc.EligibleAddresses, addr)
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return added, nil
}

// Remove deletes addresses from the allowlist. Votes already cast stay counted.
// Returns the number of addresses removed.
func (s *AllowlistService) Remove(ctx context.Context, addresses ...string) (int, error) {
	drop := make(domain.EligibilitySet, len(addresses))
	for _, a := range addresses {
		if addr := domain.NormalizeAddress(a); addr != "" {
			drop[addr] = struct{}{}
		}
	}

	removed := 0
	err := s.store.UpdateEligibility(ctx, func(doc *domain.EligibilityDocument) error {
		before := len(doc.EligibleAddresses)
		doc.EligibleAddresses = slices.DeleteFunc(doc.EligibleAddresses, drop.Contains)
		removed = before - len(doc.EligibleAddresses)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return removed, nil
}

// Replace overwrites the allowlist with the normalized, de-duplicated addresses.
func (s *AllowlistService) Replace(ctx context.Context, addresses []string) (int, error) {
	seen := make(domain.EligibilitySet, len(addresses))
	doc := &domain.EligibilityDocument{EligibleAddresses: make([]string, 0, len(addresses))}
	for _, a := range addresses {
		addr := domain.NormalizeAddress(a)
		if addr == "" || seen.Contains(addr) {
			continue
		}
		seen[addr] = struct{}{}
		doc.EligibleAddresses = append(doc.EligibleAddresses, addr)
	}

	if err := s.store.SaveEligibility(ctx, doc); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return len(doc.EligibleAddresses), nil
}
