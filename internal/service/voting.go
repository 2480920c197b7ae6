package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/events"
	"github.com/timmy/memevote/internal/ledger"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/metrics"
	"github.com/timmy/memevote/internal/repository"
)

const (
	DefaultVoteLimit   = 2
	DefaultCreateLimit = 1

	publishTimeout = 5 * time.Second
)

// VotingConfig holds the per-address limits.
type VotingConfig struct {
	VoteLimit   int
	CreateLimit int
}

// CastVoteRequest is a vote for one meme.
type CastVoteRequest struct {
	VoterAddress string `json:"voterAddress" validate:"required"`
	MemeID       string `json:"memeId" validate:"required"`
}

// CreateMemeRequest submits a new meme.
type CreateMemeRequest struct {
	CreatorAddress string `json:"creatorAddress" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description" validate:"required"`
	ImageURL       string `json:"imageUrl" validate:"required,http_url"`
}

// VotingService enforces eligibility and the vote and create limits over
// the meme document. Every check and the mutation it guards run inside one
// UpdateMemes cycle, so concurrent requests cannot both pass a limit.
type VotingService struct {
	store       *repository.DocumentStore
	oracle      *EligibilityOracle
	publisher   events.Publisher
	metrics     *metrics.VotingMetrics
	logger      *logger.Logger
	validate    *validator.Validate
	voteLimit   int
	createLimit int

	now   func() time.Time
	newID func() string
}

// NewVotingService creates a new voting service.
// Parameters:
//   - store: document store holding the meme collection.
//   - oracle: allowlist lookup.
//   - publisher: sink for meme.created and vote.cast events; nil disables events.
//   - m: metrics recorder; nil disables metrics.
//   - log: logger instance.
//   - cfg: vote and create limits; zero values fall back to 2 and 1.
//
// Returns:
//   - *VotingService: initialized voting service.
func NewVotingService(
	store *repository.DocumentStore,
	oracle *EligibilityOracle,
	publisher events.Publisher,
	m *metrics.VotingMetrics,
	log *logger.Logger,
	cfg *VotingConfig,
) *VotingService {
	voteLimit, createLimit := DefaultVoteLimit, DefaultCreateLimit
	if cfg != nil {
		if cfg.VoteLimit > 0 {
			voteLimit = cfg.VoteLimit
		}
		if cfg.CreateLimit > 0 {
			createLimit = cfg.CreateLimit
		}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &VotingService{
		store:       store,
		oracle:      oracle,
		publisher:   publisher,
		metrics:     m,
		logger:      log,
		validate:    newValidator(),
		voteLimit:   voteLimit,
		createLimit: createLimit,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// VoteLimit returns the configured votes per address.
func (s *VotingService) VoteLimit() int {
	return s.voteLimit
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *VotingService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return logger.GetDefault()
}

// CheckEligibility reports what address may still do. It never fails: when
// the meme document cannot be read the address is reported as unable to act.
func (s *VotingService) CheckEligibility(ctx context.Context, address string) *domain.EligibilityStatus {
	addr := domain.NormalizeAddress(address)
	status := &domain.EligibilityStatus{
		Address:   addr,
		VoteLimit: s.voteLimit,
	}
	if addr == "" {
		return status
	}
	ctx = logger.SetAddress(ctx, addr)

	var memes []domain.Meme
	doc, err := s.store.LoadMemes(ctx)
	switch {
	case err == nil:
		memes = doc.Memes
	case errors.Is(err, repository.ErrDocumentNotFound):
	default:
		s.log(ctx).WithError(err).Warn("Failed to load memes for eligibility check")
		return status
	}

	l := ledger.New(memes)
	eligible := s.oracle.IsEligible(ctx, addr)
	voteCount := l.VoteCountOf(addr)
	created := l.CreatedCount(addr)

	status.CanVote = eligible
	status.CanCreate = eligible && created < s.createLimit
	status.HasCreatedMeme = created > 0
	status.VoteCount = voteCount
	status.RemainingVotes = max(0, s.voteLimit-voteCount)
	return status
}

// CastVote records a vote from req.VoterAddress on req.MemeID.
// Checks run in order: validation, eligibility, vote limit, existence,
// duplicate. The first failure is returned and nothing is written.
func (s *VotingService) CastVote(ctx context.Context, req *CastVoteRequest) (*domain.MemeView, error) {
	r := CastVoteRequest{
		VoterAddress: domain.NormalizeAddress(req.VoterAddress),
		MemeID:       strings.TrimSpace(req.MemeID),
	}
	ctx = logger.SetMemeID(logger.SetAddress(ctx, r.VoterAddress), r.MemeID)

	view, err := s.castVote(ctx, &r)
	s.metrics.ObserveVote(err)
	if err != nil {
		s.log(ctx).WithError(err).Info("Vote rejected")
		return nil, err
	}

	logger.With(logger.Fields{"vote_percentage": view.VotePercentage}).
		WithCount(view.Votes).
		Info(ctx, "Vote recorded")

	s.publish(ctx, events.Event{
		Type:       events.EventVoteCast,
		MemeID:     view.ID,
		Address:    r.VoterAddress,
		Meme:       view,
		OccurredAt: s.now().UTC(),
	})
	return view, nil
}

func (s *VotingService) castVote(ctx context.Context, r *CastVoteRequest) (*domain.MemeView, error) {
	if err := validateRequest(s.validate, r); err != nil {
		return nil, err
	}

	var view *domain.MemeView
	err := s.store.UpdateMemes(ctx, func(doc *domain.MemeDocument) error {
		if !s.oracle.IsEligible(ctx, r.VoterAddress) {
			return fmt.Errorf("%w: %s is not in the eligible list", domain.ErrNotEligible, r.VoterAddress)
		}
		if ledger.New(doc.Memes).VoteCountOf(r.VoterAddress) >= s.voteLimit {
			return fmt.Errorf("%w: maximum %d votes per address", domain.ErrVoteLimitReached, s.voteLimit)
		}
		meme := doc.Find(r.MemeID)
		if meme == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, r.MemeID)
		}
		if meme.HasVoter(r.VoterAddress) {
			return domain.ErrAlreadyVoted
		}

		meme.AddVote(r.VoterAddress)
		view = &domain.MemeView{
			Meme:           meme.Clone(),
			VotePercentage: VotePercentage(meme.Votes, doc.TotalVotes()),
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return view, nil
}

// CreateMeme appends a new meme created by req.CreatorAddress.
// Checks run in order: validation, eligibility, create limit.
func (s *VotingService) CreateMeme(ctx context.Context, req *CreateMemeRequest) (*domain.Meme, error) {
	r := CreateMemeRequest{
		CreatorAddress: domain.NormalizeAddress(req.CreatorAddress),
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		ImageURL:       strings.TrimSpace(req.ImageURL),
	}
	ctx = logger.SetAddress(ctx, r.CreatorAddress)

	meme, err := s.createMeme(ctx, &r)
	s.metrics.ObserveCreate(err)
	if err != nil {
		s.log(ctx).WithError(err).Info("Meme creation rejected")
		return nil, err
	}

	ctx = logger.SetMemeID(ctx, meme.ID)
	logger.CtxInfo(ctx, "Meme created: %s", meme.Title)

	s.publish(ctx, events.Event{
		Type:       events.EventMemeCreated,
		MemeID:     meme.ID,
		Address:    meme.CreatorAddress,
		Meme:       &domain.MemeView{Meme: meme.Clone()},
		OccurredAt: meme.CreatedAt,
	})
	return meme, nil
}

func (s *VotingService) createMeme(ctx context.Context, r *CreateMemeRequest) (*domain.Meme, error) {
	if err := validateRequest(s.validate, r); err != nil {
		return nil, err
	}

	var created *domain.Meme
	err := s.store.UpdateMemes(ctx, func(doc *domain.MemeDocument) error {
		if !s.oracle.IsEligible(ctx, r.CreatorAddress) {
			return fmt.Errorf("%w: %s is not in the eligible list", domain.ErrNotEligible, r.CreatorAddress)
		}
		if ledger.New(doc.Memes).CreatedCount(r.CreatorAddress) >= s.createLimit {
			return domain.ErrAlreadyCreated
		}

		meme := domain.Meme{
			ID:             s.newID(),
			Title:          r.Title,
			Description:    r.Description,
			ImageURL:       r.ImageURL,
			CreatorAddress: r.CreatorAddress,
			Votes:          0,
			Voters:         []string{},
			CreatedAt:      s.now().UTC(),
		}
		doc.Memes = append(doc.Memes, meme)
		c := meme.Clone()
		created = &c
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return created, nil
}

// ListMemes returns every meme in display order with vote percentages.
// An unreadable meme document yields an empty list.
func (s *VotingService) ListMemes(ctx context.Context) []domain.MemeView {
	doc, err := s.store.LoadMemes(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrDocumentNotFound) {
			s.log(ctx).WithError(err).Warn("Failed to load memes")
		}
		return []domain.MemeView{}
	}
	return AnnotateMemes(doc.Memes)
}

// publish delivers ev without letting the caller's cancellation or a sink
// failure affect the already persisted operation.
func (s *VotingService) publish(ctx context.Context, ev events.Event) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		s.log(ctx).WithError(err).Warnf("Failed to publish %s event", ev.Type)
	}
}

var domainErrors = []error{
	domain.ErrValidation,
	domain.ErrNotEligible,
	domain.ErrVoteLimitReached,
	domain.ErrAlreadyVoted,
	domain.ErrAlreadyCreated,
	domain.ErrNotFound,
}

// storeError passes domain errors through and classifies anything else
// coming out of the store as ErrStoreUnavailable.
func storeError(err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
