package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/authserver/internal/apperrors"
)

// Request bodies are small, anything bigger is not a valid request
const maxBodySize = 1 << 20

var validate = validator.New()

func init() {
	configureValidator(validate)
}

type Struct any

type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// JSON renders data as is with 200 status
func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

// OK renders data in success envelope
func OK(w http.ResponseWriter, data any) {
	JSON(w, SuccessResponse{Success: true, Data: data})
}

// Message renders success envelope with message only
func Message(w http.ResponseWriter, message string) {
	JSON(w, SuccessResponse{Success: true, Message: message})
}

// Error renders error envelope with status of the well known error
// Unknown errors are rendered as internal server error without any details
func Error(w http.ResponseWriter, err error) {
	appErr := apperrors.As(err)
	errorWithDetails(w, appErr, nil)
}

func errorWithDetails(w http.ResponseWriter, appErr *apperrors.Error, details map[string]string) {
	response := ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	}

	jsonWithStatus(w, response, appErr.Status)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	var message string

	// Try to provide more specific error message based on error type
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		message = "Request body is empty"
	case errors.As(err, &typeErr):
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.As(err, &maxBytesErr):
		message = fmt.Sprintf("Request body is too large (maximum %d bytes)", maxBytesErr.Limit)
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	errorWithDetails(w, apperrors.ErrValidation, map[string]string{"body": message})
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	details := make(map[string]string, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Invalid email address"
		default:
			message = "Invalid value"
		}

		details[fieldError.Field()] = message
	}

	errorWithDetails(w, apperrors.ErrValidation, details)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	err := json.NewDecoder(body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			ValidationErrors(w, errs)
		} else {
			Error(w, err)
		}
		return value, err
	}

	return value, nil
}

// renderJSONWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
