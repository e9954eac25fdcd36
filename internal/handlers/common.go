package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"readthis-backend/internal/models"
	"readthis-backend/internal/services"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// multipartOverhead is allowed on top of the image size limit for the other form fields
const multipartOverhead = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// MessageResponse is the body of responses that only carry a status message
type MessageResponse struct {
	Message string `json:"message"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	respondJSON(w, statusCode, models.ErrorResponse{Error: message, Code: code})
}

// statusFor maps an AppError code to its HTTP status
func statusFor(code string) int {
	switch code {
	case models.CodeValidation:
		return http.StatusBadRequest
	case models.CodeUnauthorized:
		return http.StatusUnauthorized
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeConflict:
		return http.StatusNotAcceptable
	}
	return http.StatusInternalServerError
}

// respondAppError converts a service error into a response. Internal details are logged,
// never returned.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}

	status := statusFor(appErr.Code)
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	respondError(w, appErr.Message, appErr.Code, status)
}

// decodeJSON reads a JSON body into dst and validates it
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return models.NewValidationError(validationMessage(verrs[0]))
	}
	return models.NewValidationError("Invalid request")
}

func validationMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email format."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// parseMultipart bounds the body and parses a multipart form. Plain url-encoded forms
// are accepted too.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxUpload int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	err := r.ParseMultipartForm(maxUpload + multipartOverhead)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxUpload>>20))
	}
	return models.NewValidationError("Invalid form")
}

// readUpload returns the file in form field name, or nil when none was sent
func readUpload(r *http.Request, name string) (*services.Upload, error) {
	file, header, err := r.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, models.NewValidationError("Invalid file upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, models.NewValidationError("Invalid file upload")
	}
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// queryInt parses an integer query parameter; missing or malformed values yield 0
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// optionalFormValue returns a pointer to the form value, or nil when the field is absent
func optionalFormValue(r *http.Request, name string) *string {
	if _, ok := r.Form[name]; !ok {
		return nil
	}
	v := r.FormValue(name)
	return &v
}

var errAllFieldsRequired = models.NewValidationError("All fields are required: email, username, password.")

func unauthorized(message string) error {
	return models.NewUnauthorizedError(message)
}
