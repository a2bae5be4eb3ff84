package services

import (
	"time"

	"trip-share-backend/internal/models"
)

// DeriveStatus computes the phase of a trip on today from its optional dates.
// Without an end date the trip is active on its start date only.
func DeriveStatus(start, end *models.Date, today models.Date) models.TripStatus {
	if start == nil {
		return models.TripUpcoming
	}
	if today.Before(start.Time) {
		return models.TripUpcoming
	}
	if end != nil {
		if today.After(end.Time) {
			return models.TripCompleted
		}
		return models.TripActive
	}
	if today.Equal(start.Time) {
		return models.TripActive
	}
	return models.TripCompleted
}

// today returns the calendar date of now in UTC
func today(now func() time.Time) models.Date {
	return models.DateOf(now().UTC())
}
