package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"
)

// HistoryStore holds the trip history log
type HistoryStore struct{ t *tables }

func (s *HistoryStore) ListUserIDs(ctx context.Context, tripID string) ([]string, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var ids []string
	for _, e := range s.t.history {
		if e.TripID == tripID {
			ids = append(ids, e.UserID)
		}
	}
	return ids, nil
}

func (s *HistoryStore) Create(ctx context.Context, entry *models.TripHistoryEntry) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("history.create"); err != nil {
		return err
	}
	for _, e := range s.t.history {
		if e.TripID == entry.TripID && e.UserID == entry.UserID {
			return fmt.Errorf("failed to create trip history entry: %w", repository.ErrDuplicate)
		}
	}
	cp := *entry
	s.t.history = append(s.t.history, &cp)
	return nil
}

func (s *HistoryStore) withTrip(e *models.TripHistoryEntry) *models.TripHistoryEntry {
	cp := *e
	if trip, ok := s.t.trips[e.TripID]; ok {
		cp.TripName = trip.Name
	}
	return &cp
}

func (s *HistoryStore) Get(ctx context.Context, tripID, userID string) (*models.TripHistoryEntry, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, e := range s.t.history {
		if e.TripID == tripID && e.UserID == userID {
			return s.withTrip(e), nil
		}
	}
	return nil, notFound("trip history entry")
}

func (s *HistoryStore) ListByUser(ctx context.Context, userID string) ([]*models.TripHistoryEntry, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.TripHistoryEntry
	for _, e := range s.t.history {
		if e.UserID == userID {
			out = append(out, s.withTrip(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *HistoryStore) Rate(ctx context.Context, tripID, userID string, rating int, review *string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for _, e := range s.t.history {
		if e.TripID == tripID && e.UserID == userID {
			e.Rating = &rating
			e.Review = cloneString(review)
			return nil
		}
	}
	return notFound("trip history entry")
}

// ReviewStore holds user reviews
type ReviewStore struct{ t *tables }

func (s *ReviewStore) Upsert(ctx context.Context, review *models.Review) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for _, rv := range s.t.reviews {
		if rv.ReviewerID == review.ReviewerID && rv.ReviewedUserID == review.ReviewedUserID {
			rv.Rating = review.Rating
			rv.Comment = review.Comment
			rv.UpdatedAt = review.UpdatedAt
			review.ID = rv.ID
			review.CreatedAt = rv.CreatedAt
			return nil
		}
	}
	cp := *review
	s.t.reviews = append(s.t.reviews, &cp)
	return nil
}

func (s *ReviewStore) ListForUser(ctx context.Context, userID string) ([]*models.Review, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.Review
	for _, rv := range s.t.reviews {
		if rv.ReviewedUserID == userID {
			cp := *rv
			cp.ReviewerName = s.t.userName(rv.ReviewerID)
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ReportStore holds reports and suspensions
type ReportStore struct{ t *tables }

func (s *ReportStore) Create(ctx context.Context, report *models.Report) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	cp := *report
	s.t.reports = append(s.t.reports, &cp)
	return nil
}

func (s *ReportStore) ListMade(ctx context.Context, userID string) ([]*models.Report, error) {
	return s.list(func(r *models.Report) bool { return r.ReporterID == userID }), nil
}

func (s *ReportStore) ListReceived(ctx context.Context, userID string) ([]*models.Report, error) {
	return s.list(func(r *models.Report) bool { return r.ReportedUserID == userID }), nil
}

func (s *ReportStore) list(match func(*models.Report) bool) []*models.Report {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.Report
	for _, r := range s.t.reports {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *ReportStore) ActiveSuspension(ctx context.Context, userID string, now time.Time) (*models.Suspension, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for i := len(s.t.suspensions) - 1; i >= 0; i-- {
		susp := s.t.suspensions[i]
		if susp.UserID != userID || !susp.IsActive {
			continue
		}
		if susp.IsPermanent || (susp.ExpiresAt != nil && susp.ExpiresAt.After(now)) {
			cp := *susp
			return &cp, nil
		}
	}
	return nil, notFound("suspension")
}

// NotificationStore holds in-app notifications
type NotificationStore struct{ t *tables }

func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("notifications.create"); err != nil {
		return err
	}
	cp := *n
	s.t.notifications = append(s.t.notifications, &cp)
	return nil
}

func (s *NotificationStore) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.Notification
	for i := len(s.t.notifications) - 1; i >= 0; i-- {
		n := s.t.notifications[i]
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	count := 0
	for _, n := range s.t.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.mark(userID, func(n *models.Notification) bool { return want[n.ID] }), nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.mark(userID, func(*models.Notification) bool { return true }), nil
}

func (s *NotificationStore) mark(userID string, match func(*models.Notification) bool) int {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	changed := 0
	for _, n := range s.t.notifications {
		if n.UserID == userID && !n.Read && match(n) {
			n.Read = true
			changed++
		}
	}
	return changed
}
