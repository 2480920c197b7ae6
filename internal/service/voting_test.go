package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/events"
	"github.com/timmy/memevote/internal/repository"
)

func TestScenario(t *testing.T) {
	f := newFixture(t, "0xaaa", "0xbbb")
	ctx := context.Background()

	meme, err := f.svc.CreateMeme(ctx, &CreateMemeRequest{
		Title:          "T",
		Description:    "D",
		ImageURL:       "http://x/img.png",
		CreatorAddress: "0xAAA",
	})
	if err != nil {
		t.Fatalf("CreateMeme: %v", err)
	}
	if meme.CreatorAddress != "0xaaa" {
		t.Errorf("creatorAddress = %q, want 0xaaa", meme.CreatorAddress)
	}
	if meme.Votes != 0 || len(meme.Voters) != 0 {
		t.Errorf("new meme has votes=%d voters=%v", meme.Votes, meme.Voters)
	}

	view, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: meme.ID, VoterAddress: "0xbbb"})
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if view.Votes != 1 {
		t.Errorf("votes = %d, want 1", view.Votes)
	}
	if view.VotePercentage != 100 {
		t.Errorf("votePercentage = %v, want 100", view.VotePercentage)
	}

	_, err = f.svc.CastVote(ctx, &CastVoteRequest{MemeID: meme.ID, VoterAddress: "0xbbb"})
	if !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Errorf("second vote err = %v, want ErrAlreadyVoted", err)
	}

	_, err = f.svc.CastVote(ctx, &CastVoteRequest{MemeID: meme.ID, VoterAddress: "0xccc"})
	if !errors.Is(err, domain.ErrNotEligible) {
		t.Errorf("ineligible vote err = %v, want ErrNotEligible", err)
	}

	memes := f.memes(t)
	if len(memes) != 1 || memes[0].Votes != 1 {
		t.Fatalf("stored memes = %+v", memes)
	}
	assertInvariants(t, memes, 2)
}

func TestCastVote_CheckOrder(t *testing.T) {
	seed := []domain.Meme{
		{ID: "m1", CreatorAddress: "0xaaa", Votes: 1, Voters: []string{"0xbbb"}},
		{ID: "m2", CreatorAddress: "0xccc", Votes: 1, Voters: []string{"0xbbb"}},
		{ID: "m3", CreatorAddress: "0xddd"},
	}

	tests := []struct {
		name    string
		memeID  string
		voter   string
		wantErr error
	}{
		{name: "empty address", memeID: "m3", voter: "", wantErr: domain.ErrValidation},
		{name: "blank address", memeID: "m3", voter: "   ", wantErr: domain.ErrValidation},
		{name: "empty meme id", memeID: "", voter: "0xaaa", wantErr: domain.ErrValidation},
		{name: "validation before eligibility", memeID: "", voter: "0xzzz", wantErr: domain.ErrValidation},
		{name: "ineligible on unknown meme", memeID: "missing", voter: "0xzzz", wantErr: domain.ErrNotEligible},
		{name: "limit before not found", memeID: "missing", voter: "0xbbb", wantErr: domain.ErrVoteLimitReached},
		{name: "limit before duplicate", memeID: "m1", voter: "0xbbb", wantErr: domain.ErrVoteLimitReached},
		{name: "not found", memeID: "missing", voter: "0xaaa", wantErr: domain.ErrNotFound},
		{name: "accepted", memeID: "m3", voter: "0xAAA", wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "0xaaa", "0xbbb", "0xccc")
			f.seedMemes(t, seed...)

			_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{MemeID: tt.memeID, VoterAddress: tt.voter})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			// Rejected votes leave the document untouched
			for i, m := range f.memes(t) {
				if m.Votes != seed[i].Votes {
					t.Errorf("meme %s votes changed to %d", m.ID, m.Votes)
				}
			}
		})
	}
}

func TestCastVote_LimitAndDuplicate(t *testing.T) {
	f := newFixture(t, "0xaaa", "0xbbb")
	f.seedMemes(t,
		domain.Meme{ID: "m1", CreatorAddress: "0x1"},
		domain.Meme{ID: "m2", CreatorAddress: "0x2"},
		domain.Meme{ID: "m3", CreatorAddress: "0x3"},
	)
	ctx := context.Background()

	if _, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: "m1", VoterAddress: "0xaaa"}); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	_, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: "m1", VoterAddress: "0xAaA"})
	if !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("duplicate vote err = %v, want ErrAlreadyVoted", err)
	}
	if got := f.memes(t)[0].Votes; got != 1 {
		t.Errorf("duplicate vote changed votes to %d", got)
	}

	if _, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: "m2", VoterAddress: "0xaaa"}); err != nil {
		t.Fatalf("second vote: %v", err)
	}

	_, err = f.svc.CastVote(ctx, &CastVoteRequest{MemeID: "m3", VoterAddress: "0xaaa"})
	if !errors.Is(err, domain.ErrVoteLimitReached) {
		t.Fatalf("third vote err = %v, want ErrVoteLimitReached", err)
	}

	status := f.svc.CheckEligibility(ctx, "0xaaa")
	if status.VoteCount != 2 || status.RemainingVotes != 0 {
		t.Errorf("status = %+v, want voteCount 2 remaining 0", status)
	}
	assertInvariants(t, f.memes(t), 2)
}

func TestCastVote_RemovedVoterKeepsVotes(t *testing.T) {
	f := newFixture(t, "0xaaa")
	f.seedMemes(t, domain.Meme{ID: "m1", CreatorAddress: "0x1"})
	ctx := context.Background()

	if _, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: "m1", VoterAddress: "0xaaa"}); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, err := f.allowlist.Remove(ctx, "0xAAA"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if got := f.memes(t)[0].Votes; got != 1 {
		t.Errorf("votes = %d after allowlist removal, want 1", got)
	}
	if status := f.svc.CheckEligibility(ctx, "0xaaa"); status.CanVote {
		t.Error("removed address should not be able to vote")
	}
}

func TestCastVote_MixedCaseStoredVoter(t *testing.T) {
	f := newFixture(t, "0xbbb")
	f.seedMemes(t,
		domain.Meme{ID: "m1", CreatorAddress: "0x1", Votes: 1, Voters: []string{"0xBBB"}},
		domain.Meme{ID: "m2", CreatorAddress: "0x2"},
	)
	ctx := context.Background()

	_, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: "m1", VoterAddress: "0xbbb"})
	if !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("err = %v, want ErrAlreadyVoted", err)
	}
	if m := f.memes(t)[0]; m.Votes != 1 || len(m.Voters) != 1 {
		t.Errorf("votes = %d voters = %v, want a single vote", m.Votes, m.Voters)
	}
	if status := f.svc.CheckEligibility(ctx, "0xbbb"); status.VoteCount != 1 || status.RemainingVotes != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestCastVote_Concurrent(t *testing.T) {
	const n = 25

	voters := make([]string, n)
	for i := range voters {
		voters[i] = fmt.Sprintf("0x%03d", i)
	}
	f := newFixture(t, voters...)
	f.seedMemes(t, domain.Meme{ID: "m1", CreatorAddress: "0xfff"})

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, v := range voters {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{MemeID: "m1", VoterAddress: voter})
			errs <- err
		}(v)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("CastVote: %v", err)
		}
	}

	memes := f.memes(t)
	if memes[0].Votes != n || len(memes[0].Voters) != n {
		t.Errorf("votes=%d voters=%d, want %d", memes[0].Votes, len(memes[0].Voters), n)
	}
	assertInvariants(t, memes, 2)
}

func TestCastVote_ConcurrentSameVoter(t *testing.T) {
	f := newFixture(t, "0xaaa")
	f.seedMemes(t,
		domain.Meme{ID: "m1", CreatorAddress: "0x1"},
		domain.Meme{ID: "m2", CreatorAddress: "0x2"},
		domain.Meme{ID: "m3", CreatorAddress: "0x3"},
	)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.CastVote(context.Background(), &CastVoteRequest{
				MemeID:       fmt.Sprintf("m%d", i%3+1),
				VoterAddress: "0xaaa",
			})
		}(i)
	}
	wg.Wait()

	memes := f.memes(t)
	assertInvariants(t, memes, 2)
	if total := (&domain.MemeDocument{Memes: memes}).TotalVotes(); total != 2 {
		t.Errorf("total votes = %d, want 2", total)
	}
}

func TestCreateMeme(t *testing.T) {
	valid := CreateMemeRequest{
		Title:          "Doge",
		Description:    "Such vote",
		ImageURL:       "https://cdn.example.com/doge.png",
		CreatorAddress: "0xaaa",
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateMemeRequest)
		wantErr error
	}{
		{name: "valid", mutate: func(r *CreateMemeRequest) {}},
		{name: "missing title", mutate: func(r *CreateMemeRequest) { r.Title = "" }, wantErr: ErrMissingField},
		{name: "blank description", mutate: func(r *CreateMemeRequest) { r.Description = "  " }, wantErr: ErrMissingField},
		{name: "missing image", mutate: func(r *CreateMemeRequest) { r.ImageURL = "" }, wantErr: ErrMissingField},
		{name: "relative image url", mutate: func(r *CreateMemeRequest) { r.ImageURL = "/uploads/doge.png" }, wantErr: ErrInvalidURL},
		{name: "javascript image url", mutate: func(r *CreateMemeRequest) { r.ImageURL = "javascript:alert(1)" }, wantErr: ErrInvalidURL},
		{name: "data image url", mutate: func(r *CreateMemeRequest) { r.ImageURL = "data:image/png;base64,AAAA" }, wantErr: ErrInvalidURL},
		{name: "missing creator", mutate: func(r *CreateMemeRequest) { r.CreatorAddress = "" }, wantErr: ErrMissingField},
		{name: "ineligible creator", mutate: func(r *CreateMemeRequest) { r.CreatorAddress = "0xzzz" }, wantErr: domain.ErrNotEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "0xaaa")
			req := valid
			tt.mutate(&req)

			meme, err := f.svc.CreateMeme(context.Background(), &req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				if tt.wantErr != domain.ErrNotEligible && !errors.Is(err, domain.ErrValidation) {
					t.Errorf("err = %v, want a validation error", err)
				}
				if len(f.memes(t)) != 0 {
					t.Error("rejected create must not persist a meme")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if meme.ID != "meme-1" || meme.Title != "Doge" || meme.Votes != 0 {
				t.Errorf("unexpected meme: %+v", meme)
			}
			if meme.Voters == nil {
				t.Error("voters must be an empty list, not nil")
			}
		})
	}
}

func TestCreateMeme_AlreadyCreated(t *testing.T) {
	f := newFixture(t, "0xaaa", "0xbbb")
	ctx := context.Background()
	req := &CreateMemeRequest{Title: "A", Description: "B", ImageURL: "http://x/a.png", CreatorAddress: "0xaaa"}

	if _, err := f.svc.CreateMeme(ctx, req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	req.CreatorAddress = " 0xAAA "
	if _, err := f.svc.CreateMeme(ctx, req); !errors.Is(err, domain.ErrAlreadyCreated) {
		t.Fatalf("second create err = %v, want ErrAlreadyCreated", err)
	}

	req.CreatorAddress = "0xbbb"
	if _, err := f.svc.CreateMeme(ctx, req); err != nil {
		t.Fatalf("other creator: %v", err)
	}

	memes := f.memes(t)
	if len(memes) != 2 || memes[0].CreatorAddress != "0xaaa" || memes[1].CreatorAddress != "0xbbb" {
		t.Errorf("memes not appended in order: %+v", memes)
	}
	if memes[0].ID == memes[1].ID {
		t.Error("meme ids must be unique")
	}
}

func TestCheckEligibility(t *testing.T) {
	f := newFixture(t, "0xaaa", "0xbbb")
	f.seedMemes(t,
		domain.Meme{ID: "m1", CreatorAddress: "0xaaa", Votes: 1, Voters: []string{"0xbbb"}},
	)

	tests := []struct {
		name    string
		address string
		want    domain.EligibilityStatus
	}{
		{
			name:    "creator with no votes",
			address: "0xAAA",
			want:    domain.EligibilityStatus{Address: "0xaaa", CanVote: true, CanCreate: false, VoteCount: 0, RemainingVotes: 2, VoteLimit: 2, HasCreatedMeme: true},
		},
		{
			name:    "voter who has not created",
			address: "0xbbb",
			want:    domain.EligibilityStatus{Address: "0xbbb", CanVote: true, CanCreate: true, VoteCount: 1, RemainingVotes: 1, VoteLimit: 2},
		},
		{
			name:    "ineligible address",
			address: "0xccc",
			want:    domain.EligibilityStatus{Address: "0xccc", RemainingVotes: 2, VoteLimit: 2},
		},
		{
			name:    "empty address",
			address: "",
			want:    domain.EligibilityStatus{VoteLimit: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.svc.CheckEligibility(context.Background(), tt.address)
			if *got != tt.want {
				t.Errorf("CheckEligibility(%q) = %+v, want %+v", tt.address, *got, tt.want)
			}
		})
	}
}

func TestCheckEligibility_NoEligibilityDocument(t *testing.T) {
	f := newFixture(t)

	status := f.svc.CheckEligibility(context.Background(), "0xaaa")
	if status.CanVote || status.CanCreate {
		t.Errorf("missing allowlist must mean nobody is eligible, got %+v", status)
	}
}

func TestCheckEligibility_UnreadableStore(t *testing.T) {
	f := newFixture(t, "0xaaa")
	f.backend.failRead[repository.MemeDocumentName] = true

	status := f.svc.CheckEligibility(context.Background(), "0xaaa")
	want := domain.EligibilityStatus{Address: "0xaaa", VoteLimit: 2}
	if *status != want {
		t.Errorf("status = %+v, want %+v", *status, want)
	}
}

func TestCorruptEligibilityDocument(t *testing.T) {
	f := newFixture(t, "0xaaa")
	f.seedMemes(t, domain.Meme{ID: "m1", CreatorAddress: "0x1"})
	if err := writeRaw(f, "eligible-addresses", "{not json"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{MemeID: "m1", VoterAddress: "0xaaa"})
	if !errors.Is(err, domain.ErrNotEligible) {
		t.Errorf("err = %v, want ErrNotEligible", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		f := newFixture(t, "0xaaa")
		f.seedMemes(t, domain.Meme{ID: "m1", CreatorAddress: "0x1"})
		f.backend.failWrite = true

		_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{MemeID: "m1", VoterAddress: "0xaaa"})
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("err = %v, want ErrStoreUnavailable", err)
		}
		if len(f.pub.recorded()) != 0 {
			t.Error("no event may be published for a failed write")
		}

		f.backend.failWrite = false
		if got := f.memes(t)[0].Votes; got != 0 {
			t.Errorf("votes = %d after failed write, want 0", got)
		}
	})

	t.Run("corrupt meme document", func(t *testing.T) {
		f := newFixture(t, "0xaaa")
		if err := writeRaw(f, "memes", "[[["); err != nil {
			t.Fatal(err)
		}

		_, err := f.svc.CreateMeme(context.Background(), &CreateMemeRequest{
			Title: "A", Description: "B", ImageURL: "http://x/a.png", CreatorAddress: "0xaaa",
		})
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Errorf("err = %v, want ErrStoreUnavailable", err)
		}
		if got := f.svc.ListMemes(context.Background()); len(got) != 0 {
			t.Errorf("ListMemes on corrupt document = %v, want empty", got)
		}
	})
}

func TestListMemes(t *testing.T) {
	t.Run("percentages", func(t *testing.T) {
		f := newFixture(t)
		f.seedMemes(t,
			domain.Meme{ID: "a", Votes: 3, Voters: []string{"1", "2", "3"}},
			domain.Meme{ID: "b", Votes: 1, Voters: []string{"4"}},
			domain.Meme{ID: "c"},
		)

		views := f.svc.ListMemes(context.Background())
		want := []float64{75, 25, 0}
		if len(views) != len(want) {
			t.Fatalf("got %d views, want %d", len(views), len(want))
		}
		for i, v := range views {
			if v.VotePercentage != want[i] {
				t.Errorf("meme %s percentage = %v, want %v", v.ID, v.VotePercentage, want[i])
			}
		}
	})

	t.Run("all zero", func(t *testing.T) {
		f := newFixture(t)
		f.seedMemes(t, domain.Meme{ID: "a"}, domain.Meme{ID: "b"})
		for _, v := range f.svc.ListMemes(context.Background()) {
			if v.VotePercentage != 0 {
				t.Errorf("meme %s percentage = %v, want 0", v.ID, v.VotePercentage)
			}
		}
	})

	t.Run("missing document", func(t *testing.T) {
		f := newFixture(t)
		views := f.svc.ListMemes(context.Background())
		if views == nil || len(views) != 0 {
			t.Errorf("ListMemes = %#v, want empty non-nil list", views)
		}
	})
}

func TestEventsPublishedAfterWrite(t *testing.T) {
	f := newFixture(t, "0xaaa", "0xbbb")
	f.pub.err = errors.New("broker down")
	ctx := context.Background()

	meme, err := f.svc.CreateMeme(ctx, &CreateMemeRequest{
		Title: "A", Description: "B", ImageURL: "http://x/a.png", CreatorAddress: "0xaaa",
	})
	if err != nil {
		t.Fatalf("publish failure must not fail CreateMeme: %v", err)
	}
	if _, err := f.svc.CastVote(ctx, &CastVoteRequest{MemeID: meme.ID, VoterAddress: "0xbbb"}); err != nil {
		t.Fatalf("publish failure must not fail CastVote: %v", err)
	}

	got := f.pub.recorded()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != events.EventMemeCreated || got[0].Address != "0xaaa" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Type != events.EventVoteCast || got[1].Meme.Votes != 1 || got[1].Address != "0xbbb" {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestNewVotingService_DefaultLimits(t *testing.T) {
	svc := NewVotingService(nil, nil, nil, nil, nil, nil)
	if svc.voteLimit != DefaultVoteLimit || svc.createLimit != DefaultCreateLimit {
		t.Errorf("limits = %d/%d, want %d/%d", svc.voteLimit, svc.createLimit, DefaultVoteLimit, DefaultCreateLimit)
	}
}

func writeRaw(f *fixture, name, body string) error {
	return f.backend.Backend.Write(context.Background(), repository.DocumentName(name), []byte(body))
}
