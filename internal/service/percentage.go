package service

import (
	"github.com/shopspring/decimal"
	"github.com/timmy/memevote/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// VotePercentage returns votes as a share of total, in percent, rounded half
// up to one decimal place. It is 0 when total is 0.
func VotePercentage(votes, total int) float64 {
	if total <= 0 || votes <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(votes)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 1).
		InexactFloat64()
}

// AnnotateMemes returns a view of every meme with its vote percentage.
// The result never aliases memes.
func AnnotateMemes(memes []domain.Meme) []domain.MemeView {
	total := 0
	for _, m := range memes {
		total += m.Votes
	}

	views := make([]domain.MemeView, 0, len(memes))
	for _, m := range memes {
		views = append(views, domain.MemeView{
			Meme:           m.Clone(),
			VotePercentage: VotePercentage(m.Votes, total),
		})
	}
	return views
}
