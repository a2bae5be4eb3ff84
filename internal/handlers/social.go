package handlers

import (
	"net/http"

	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/services"
)

// SocialHandler handles reviews, reports and notifications
type SocialHandler struct {
	reviewService       *services.ReviewService
	reportService       *services.ReportService
	notificationService *services.NotificationService
}

// NewSocialHandler creates a new social handler
func NewSocialHandler(
	reviewService *services.ReviewService,
	reportService *services.ReportService,
	notificationService *services.NotificationService,
) *SocialHandler {
	return &SocialHandler{
		reviewService:       reviewService,
		reportService:       reportService,
		notificationService: notificationService,
	}
}

type createReviewRequest struct {
	ReviewerID     string   `json:"reviewer_id"`
	ReviewedUserID string   `json:"reviewed_user_id" validate:"required"`
	Rating         *integer `json:"rating" validate:"required"`
	Comment        string   `json:"comment"`
}

// CreateReview handles POST /reviews
func (h *SocialHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid review request")
		return
	}
	userID, err := actingUser(r, req.ReviewerID, "reviewer_id")
	if err != nil {
		respondServiceError(w, r, err, "Review on behalf of another user")
		return
	}

	review, err := h.reviewService.Create(r.Context(), userID, req.ReviewedUserID, int(*req.Rating), req.Comment)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create review")
		return
	}
	respondOK(w, envelope{"review": review})
}

// UserReviews handles GET /reviews/user?user_id=
func (h *SocialHandler) UserReviews(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = middleware.GetUserID(r.Context())
	}

	reviews, stats, err := h.reviewService.ListForUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list reviews")
		return
	}
	respondOK(w, envelope{"reviews": reviews, "stats": stats})
}

// ReportReasons handles GET /reports/reasons
func (h *SocialHandler) ReportReasons(w http.ResponseWriter, r *http.Request) {
	respondOK(w, envelope{"reasons": services.ReportReasons})
}

type createReportRequest struct {
	ReporterID       string  `json:"reporter_id"`
	ReportedUserID   string  `json:"reported_user_id" validate:"required"`
	Reason           string  `json:"reason" validate:"required"`
	Description      string  `json:"description"`
	EvidenceImageURL *string `json:"evidence_image_url" validate:"omitempty,url"`
}

// CreateReport handles POST /reports
func (h *SocialHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid report request")
		return
	}
	userID, err := actingUser(r, req.ReporterID, "reporter_id")
	if err != nil {
		respondServiceError(w, r, err, "Report on behalf of another user")
		return
	}

	report, err := h.reportService.Create(r.Context(), userID, services.ReportInput{
		ReportedUserID:   req.ReportedUserID,
		Reason:           req.Reason,
		Description:      req.Description,
		EvidenceImageURL: req.EvidenceImageURL,
	})
	if err != nil {
		respondServiceError(w, r, err, "Failed to create report")
		return
	}
	respondOK(w, envelope{"report": report})
}

// UserReports handles GET /reports/user?user_id=&type=made|received. Users
// only see their own reports.
func (h *SocialHandler) UserReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := actingUser(r, q.Get("user_id"), "user_id")
	if err != nil {
		respondServiceError(w, r, err, "Reports of another user")
		return
	}

	var made bool
	switch q.Get("type") {
	case "", "received":
	case "made":
		made = true
	default:
		respondServiceError(w, r, invalid("type", "type must be one of: made received"), "Invalid reports request")
		return
	}

	reports, stats, err := h.reportService.List(r.Context(), userID, made)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list reports")
		return
	}
	respondOK(w, envelope{"reports": reports, "stats": stats})
}

// Suspension handles GET /users/suspension?user_id=
func (h *SocialHandler) Suspension(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = middleware.GetUserID(r.Context())
	}

	status, err := h.reportService.Suspension(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to check suspension")
		return
	}
	respondOK(w, envelope{"is_suspended": status.IsSuspended, "suspension_info": status.Suspension})
}

// Notifications handles GET /notifications?limit=
func (h *SocialHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondServiceError(w, r, err, "Invalid notifications request")
		return
	}

	list, unread, err := h.notificationService.List(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list notifications")
		return
	}
	respondOK(w, envelope{"notifications": list, "unread_count": unread})
}

type markReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

// MarkRead handles POST /notifications/read
func (h *SocialHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid mark read request")
		return
	}

	n, err := h.notificationService.MarkRead(r.Context(), middleware.GetUserID(r.Context()), req.NotificationIDs)
	if err != nil {
		respondServiceError(w, r, err, "Failed to mark notifications read")
		return
	}
	respondOK(w, envelope{"updated": n})
}

// MarkAllRead handles POST /notifications/read-all
func (h *SocialHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notificationService.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to mark notifications read")
		return
	}
	respondOK(w, envelope{"updated": n})
}
