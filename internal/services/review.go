package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReviewStats summarises the reviews a user received
type ReviewStats struct {
	TotalReviews  int         `json:"total_reviews"`
	AverageRating float64     `json:"average_rating"`
	Distribution  map[int]int `json:"rating_distribution"`
}

// ReviewService handles user reviews
type ReviewService struct {
	reviews ReviewStore
	users   UserStore
	now     func() time.Time
}

// NewReviewService creates a new review service
func NewReviewService(st Stores) *ReviewService {
	return &ReviewService{reviews: st.Reviews, users: st.Users, now: time.Now}
}

// Create stores the review of reviewedID by reviewerID, replacing an earlier one
func (s *ReviewService) Create(ctx context.Context, reviewerID, reviewedID string, rating int, comment string) (*models.Review, error) {
	if reviewedID == "" {
		return nil, validationError("reviewed_user_id", "reviewed_user_id is required")
	}
	if reviewerID == reviewedID {
		return nil, businessError("you cannot review yourself")
	}
	if rating < 1 || rating > 5 {
		return nil, validationError("rating", "rating must be an integer between 1 and 5")
	}
	if _, err := s.users.GetByID(ctx, reviewedID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user", err)
		}
		return nil, upstream("failed to get user", err)
	}

	now := s.now()
	review := &models.Review{
		ID:             uuid.New().String(),
		ReviewerID:     reviewerID,
		ReviewedUserID: reviewedID,
		Rating:         rating,
		Comment:        strings.TrimSpace(comment),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.reviews.Upsert(ctx, review); err != nil {
		return nil, upstream("failed to save review", err)
	}

	log.Info().Str("reviewer_id", reviewerID).Str("reviewed_user_id", reviewedID).Int("rating", rating).Msg("Review saved")
	return review, nil
}

// ListForUser returns the reviews of a user and their statistics
func (s *ReviewService) ListForUser(ctx context.Context, userID string) ([]*models.Review, *ReviewStats, error) {
	if userID == "" {
		return nil, nil, validationError("user_id", "user_id is required")
	}
	reviews, err := s.reviews.ListForUser(ctx, userID)
	if err != nil {
		return nil, nil, upstream("failed to get reviews", err)
	}
	return nonNil(reviews), reviewStats(reviews), nil
}

func reviewStats(reviews []*models.Review) *ReviewStats {
	stats := &ReviewStats{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, r := range reviews {
		stats.Distribution[r.Rating]++
		sum += r.Rating
	}
	stats.TotalReviews = len(reviews)
	if stats.TotalReviews > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(stats.TotalReviews)*10) / 10
	}
	return stats
}
