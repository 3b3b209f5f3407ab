// Package review stores per-build reviews with a per-user cap.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/model/review"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrNotOwner       = errors.New("you can only modify your own reviews")
	ErrInvalidRating  = errors.New("rating must be between 0 and 5 in half steps")
	ErrTextTooShort   = fmt.Errorf("review must be at least %d characters", review.MinTextLength)
)

// Input is the editable part of a review.
type Input struct {
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

func (in Input) validate() error {
	if in.Rating < 0 || in.Rating > 5 || math.Mod(in.Rating*2, 1) != 0 {
		return ErrInvalidRating
	}
	if len([]rune(strings.TrimSpace(in.Text))) < review.MinTextLength {
		return ErrTextTooShort
	}
	return nil
}

// Service persists reviews in the origin-wide store, one list per build.
type Service struct {
	store *local.Adapter
	clock clock.Clock
	mu    sync.Mutex
}

// NewService creates a review service.
func NewService(store *local.Adapter, c clock.Clock) *Service {
	if c == nil {
		c = clock.Real()
	}
	return &Service{store: store, clock: c}
}

// Submit adds a review and trims the author's older entries beyond the cap.
func (s *Service) Submit(ctx context.Context, buildID string, author Author, in Input) (review.Review, error) {
	if err := in.validate(); err != nil {
		return review.Review{}, err
	}
	now := s.clock.Now()
	r := review.Review{
		ID:        ids.New(ids.PrefixReview, now),
		BuildID:   buildID,
		UserID:    author.ID,
		Author:    author.Name,
		Rating:    in.Rating,
		Text:      strings.TrimSpace(in.Text),
		Timestamp: clock.Millis(now),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := local.KeyBuildReviews(buildID)
	existing := local.ReadList[review.Review](ctx, s.store, key)
	all := append([]review.Review{r}, existing...)
	kept := Cap(all)
	if err := local.WriteList(ctx, s.store, key, kept); err != nil {
		return review.Review{}, fmt.Errorf("save review: %w", err)
	}
	if dropped := len(all) - len(kept); dropped > 0 {
		log.Printf("[review] %s on %s: dropped %d older review(s)", author.ID, buildID, dropped)
	}
	return r, nil
}

// List returns the visible reviews of a build, newest first.
func (s *Service) List(ctx context.Context, buildID string) review.Summary {
	items := Cap(local.ReadList[review.Review](ctx, s.store, local.KeyBuildReviews(buildID)))
	sum := review.Summary{Reviews: items, Count: len(items)}
	if len(items) > 0 {
		var total float64
		for _, r := range items {
			total += r.Rating
		}
		sum.Average = math.Round(total/float64(len(items))*10) / 10
	}
	return sum
}

// Update replaces the rating and text of the author's own review.
func (s *Service) Update(ctx context.Context, buildID, reviewID string, author Author, in Input) (review.Review, error) {
	if err := in.validate(); err != nil {
		return review.Review{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := local.KeyBuildReviews(buildID)
	items := local.ReadList[review.Review](ctx, s.store, key)
	idx, err := findOwned(items, reviewID, author)
	if err != nil {
		return review.Review{}, err
	}
	items[idx].Rating = in.Rating
	items[idx].Text = strings.TrimSpace(in.Text)
	items[idx].Timestamp = clock.Millis(s.clock.Now())
	if err := local.WriteList(ctx, s.store, key, items); err != nil {
		return review.Review{}, fmt.Errorf("save review: %w", err)
	}
	return items[idx], nil
}

// Delete removes the author's own review.
func (s *Service) Delete(ctx context.Context, buildID, reviewID string, author Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := local.KeyBuildReviews(buildID)
	items := local.ReadList[review.Review](ctx, s.store, key)
	idx, err := findOwned(items, reviewID, author)
	if err != nil {
		return err
	}
	items = append(items[:idx], items[idx+1:]...)
	if err := local.WriteList(ctx, s.store, key, items); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

func findOwned(items []review.Review, reviewID string, author Author) (int, error) {
	for i, r := range items {
		if r.ID != reviewID {
			continue
		}
		if r.UserID != author.ID {
			return -1, ErrNotOwner
		}
		return i, nil
	}
	return -1, ErrReviewNotFound
}

// Cap sorts reviews newest first and keeps at most review.MaxPerUser per
// user. Ties keep their input order.
func Cap(items []review.Review) []review.Review {
	sorted := append([]review.Review(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	seen := make(map[string]int, len(sorted))
	out := make([]review.Review, 0, len(sorted))
	for _, r := range sorted {
		if seen[r.UserID] >= review.MaxPerUser {
			continue
		}
		seen[r.UserID]++
		out = append(out, r)
	}
	return out
}
