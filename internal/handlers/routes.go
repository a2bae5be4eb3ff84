package handlers

import (
	"net/http"

	"trip-share-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// API groups the HTTP handlers of the service
type API struct {
	Auth         *AuthHandler
	Trips        *TripHandler
	Applications *ApplicationHandler
	Chat         *ChatHandler
	Social       *SocialHandler
	WebSocket    *WebSocketHandler

	// CronKey guards the lifecycle sweep
	CronKey string
}

// Mount registers every route on r. auth authenticates the protected group.
func (a *API) Mount(r chi.Router, auth func(http.Handler) http.Handler) {
	// Public routes
	r.Post("/auth/register", a.Auth.Register)
	r.Post("/auth/login", a.Auth.Login)
	r.Post("/auth/refresh", a.Auth.Refresh)
	r.Get("/auth/confirm", a.Auth.Confirm)
	r.Get("/reports/reasons", a.Social.ReportReasons)
	r.With(middleware.RequireKey("X-Cron-Key", a.CronKey)).Post("/trips/sweep", a.Trips.Sweep)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/auth/upsert_profile", a.Auth.UpsertProfile)
		r.Get("/profile/user", a.Auth.GetProfile)
		r.Post("/profile/avatar", a.Auth.UploadAvatar)
		r.Post("/profile/push-token", a.Auth.UpdatePushToken)

		r.Post("/trips", a.Trips.Create)
		r.Get("/trips", a.Trips.List)
		r.Post("/trips/update", a.Trips.Update)
		r.Get("/trips/mine", a.Trips.Mine)
		r.Get("/trips/members", a.Trips.Members)
		r.Post("/trips/join", a.Trips.Join)
		r.Post("/trips/leave", a.Trips.Leave)
		r.Post("/trips/complete", a.Trips.Complete)
		r.Get("/trips/{trip_id}/applications", a.Applications.ForTrip)

		r.Post("/applications", a.Applications.Apply)
		r.Post("/applications/respond", a.Applications.Respond)
		r.Get("/applications/mine", a.Applications.Mine)

		r.Get("/history", a.Applications.History)
		r.Post("/history/rate", a.Applications.Rate)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/messages", a.Chat.Send)
			r.Delete("/messages/{message_id}/file", a.Chat.DeleteFile)
			r.Post("/files", a.Chat.Upload)
			r.Post("/invite", a.Chat.Invite)
			r.Get("/rooms", a.Chat.Rooms)
			r.Get("/rooms/{room_id}/messages", a.Chat.Messages)
			r.Get("/rooms/{room_id}/members", a.Chat.Members)
			r.Get("/rooms/{room_id}/files/stats", a.Chat.FileStats)
			r.Post("/rooms/{room_id}/typing", a.Chat.SetTyping)
			r.Get("/rooms/{room_id}/typing", a.Chat.Typing)
		})

		r.Post("/reviews", a.Social.CreateReview)
		r.Get("/reviews/user", a.Social.UserReviews)
		r.Post("/reports", a.Social.CreateReport)
		r.Get("/reports/user", a.Social.UserReports)
		r.Get("/users/suspension", a.Social.Suspension)

		r.Get("/notifications", a.Social.Notifications)
		r.Post("/notifications/read", a.Social.MarkRead)
		r.Post("/notifications/read-all", a.Social.MarkAllRead)
	})

	// WebSocket route
	r.Get("/ws", a.WebSocket.HandleWebSocket)
}
