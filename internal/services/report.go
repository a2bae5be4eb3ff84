package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Report states
const (
	ReportPending   = "pending"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// ReportReason is one entry of the moderation catalogue
type ReportReason struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ReportReasons is the fixed catalogue a report must pick from
var ReportReasons = []ReportReason{
	{"Comportamiento inapropiado", "Comportamiento inapropiado", "Lenguaje ofensivo, actitudes agresivas o faltas de respeto en el chat o en persona"},
	{"Cancelación sin aviso", "Cancelación sin aviso", "El usuario canceló el viaje a último momento o no se presentó sin justificarlo"},
	{"Conducta sospechosa o engañosa", "Conducta sospechosa o engañosa", "El usuario dio información falsa, intentó estafar o comportarse de manera extraña"},
	{"Incumplimiento de las normas de la app", "Incumplimiento de las normas de la app", "No respetó las reglas del servicio o los términos de uso"},
	{"Problemas con el pago o gastos", "Problemas con el pago o gastos", "No pagó su parte del viaje o hubo conflictos con el dinero acordado"},
	{"Conducción peligrosa o imprudente", "Conducción peligrosa o imprudente", "En caso de que sea el conductor y maneje de forma riesgosa o irresponsable"},
	{"Falta de higiene o condiciones inapropiadas del vehículo", "Falta de higiene o condiciones inapropiadas del vehículo", "Si el viaje fue incómodo por falta de limpieza, olores, etc."},
	{"Acoso o comportamiento sexual inapropiado", "Acoso o comportamiento sexual inapropiado", "Cualquier tipo de insinuación, acoso o conducta que genere incomodidad"},
	{"Perfil falso o suplantación de identidad", "Perfil falso o suplantación de identidad", "El usuario no coincide con su foto o datos del perfil"},
	{"Otro motivo", "Otro motivo", "Opción para escribir libremente una descripción del incidente"},
}

func validReason(reason string) bool {
	for _, r := range ReportReasons {
		if r.Value == reason {
			return true
		}
	}
	return false
}

// ReportInput is a report about another user
type ReportInput struct {
	ReportedUserID   string
	Reason           string
	Description      string
	EvidenceImageURL *string
}

// SuspensionStatus tells whether a user is currently suspended
type SuspensionStatus struct {
	IsSuspended bool               `json:"is_suspended"`
	Suspension  *models.Suspension `json:"suspension_info"`
}

// ReportService handles user reports and suspension checks
type ReportService struct {
	reports ReportStore
	users   UserStore
	now     func() time.Time
}

// NewReportService creates a new report service
func NewReportService(st Stores) *ReportService {
	return &ReportService{reports: st.Reports, users: st.Users, now: time.Now}
}

// Create files a pending report from reporterID
func (s *ReportService) Create(ctx context.Context, reporterID string, in ReportInput) (*models.Report, error) {
	if in.ReportedUserID == "" {
		return nil, validationError("reported_user_id", "reported_user_id is required")
	}
	if in.Reason == "" {
		return nil, validationError("reason", "reason is required")
	}
	if reporterID == in.ReportedUserID {
		return nil, businessError("you cannot report yourself")
	}
	if !validReason(in.Reason) {
		return nil, validationError("reason", "reason is not in the catalogue")
	}
	if _, err := s.users.GetByID(ctx, in.ReportedUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user", err)
		}
		return nil, upstream("failed to get user", err)
	}

	report := &models.Report{
		ID:               uuid.New().String(),
		ReporterID:       reporterID,
		ReportedUserID:   in.ReportedUserID,
		Reason:           in.Reason,
		Description:      strings.TrimSpace(in.Description),
		EvidenceImageURL: in.EvidenceImageURL,
		Status:           ReportPending,
		CreatedAt:        s.now(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, upstream("failed to create report", err)
	}

	log.Info().
		Str("report_id", report.ID).
		Str("reporter_id", reporterID).
		Str("reported_user_id", in.ReportedUserID).
		Msg("Report created")
	return report, nil
}

// List returns the reports made by or received by userID, with the
// statistics of the reports the user received.
func (s *ReportService) List(ctx context.Context, userID string, made bool) ([]*models.Report, *models.ReportStats, error) {
	if userID == "" {
		return nil, nil, validationError("user_id", "user_id is required")
	}
	received, err := s.reports.ListReceived(ctx, userID)
	if err != nil {
		return nil, nil, upstream("failed to get reports", err)
	}
	stats := reportStats(received)
	if !made {
		return nonNil(received), stats, nil
	}

	reports, err := s.reports.ListMade(ctx, userID)
	if err != nil {
		return nil, nil, upstream("failed to get reports", err)
	}
	return nonNil(reports), stats, nil
}

func reportStats(reports []*models.Report) *models.ReportStats {
	stats := &models.ReportStats{TotalReports: len(reports)}
	for _, r := range reports {
		switch r.Status {
		case ReportPending:
			stats.PendingReports++
		case ReportResolved:
			stats.ResolvedReports++
		case ReportDismissed:
			stats.DismissedReports++
		}
	}
	return stats
}

// Suspension reports whether userID has a suspension in force
func (s *ReportService) Suspension(ctx context.Context, userID string) (*SuspensionStatus, error) {
	if userID == "" {
		return nil, validationError("user_id", "user_id is required")
	}
	susp, err := s.reports.ActiveSuspension(ctx, userID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return &SuspensionStatus{}, nil
	}
	if err != nil {
		return nil, upstream("failed to check suspension", err)
	}
	return &SuspensionStatus{IsSuspended: true, Suspension: susp}, nil
}
