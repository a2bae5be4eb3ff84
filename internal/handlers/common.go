package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// envelope is the body of every response. "ok" is always set.
type envelope map[string]any

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON names instead of Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, statusCode int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondOK sends a success envelope
func respondOK(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["ok"] = true
	respondJSON(w, http.StatusOK, body)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, envelope{"ok": false, "error": message})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindBusinessRule:
		return http.StatusBadRequest
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError maps a service failure to its status code. Upstream
// failures are logged with msg.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	statusCode := statusFor(services.KindOf(err))
	body := envelope{"ok": false, "error": err.Error()}

	var se *services.Error
	if errors.As(err, &se) && se.Field != "" {
		body["field"] = se.Field
	}

	event := log.Debug()
	if statusCode >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Str("user_id", middleware.GetUserID(r.Context())).
		Msg(msg)

	respondJSON(w, statusCode, body)
}

func invalid(field, format string, args ...any) error {
	return &services.Error{Kind: services.KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// decodeJSON reads the request body into dst and validates its tags
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &services.Error{Kind: services.KindValidation, Message: "invalid request body: " + err.Error(), Err: err}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalid(fe.Field(), "%s", validationMessage(fe))
	}
	return &services.Error{Kind: services.KindValidation, Message: err.Error(), Err: err}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// actingUser returns the authenticated user. A user id sent in the body must
// match it.
func actingUser(r *http.Request, claimed, field string) (string, error) {
	userID := middleware.GetUserID(r.Context())
	if claimed != "" && claimed != userID {
		return "", &services.Error{Kind: services.KindAuthorization, Field: field, Message: field + " does not match the authenticated user"}
	}
	return userID, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(name, "%s must be an integer", name)
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !finite(v) {
		return nil, invalid(name, "%s must be a number", name)
	}
	return &v, nil
}

// number accepts a JSON number or a numeric string
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(string(data), `"`))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !finite(v) {
		return fmt.Errorf("%s is not a number", data)
	}
	*n = number(v)
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (n *number) float() *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}

// integer accepts a whole JSON number or an integer string
type integer int

func (i *integer) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(string(data), `"`))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !finite(v) || v != float64(int(v)) {
		return fmt.Errorf("%s is not an integer", data)
	}
	*i = integer(v)
	return nil
}

func (i *integer) int() *int {
	if i == nil {
		return nil
	}
	v := int(*i)
	return &v
}

// formFile reads a multipart upload. The caller closes the returned file.
func formFile(r *http.Request, field string, maxBytes int64) (services.FileUpload, func(), error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return services.FileUpload{}, nil, invalid(field, "invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return services.FileUpload{}, nil, invalid(field, "%s is required", field)
	}
	contentType := header.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	upload := services.FileUpload{
		Name:        header.Filename,
		ContentType: strings.TrimSpace(contentType),
		Size:        header.Size,
		Body:        file,
	}
	return upload, func() { file.Close() }, nil
}
