package render

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authserver/internal/apperrors"
)

// Serve the handler once and return response status and body
func serve(t *testing.T, handler http.HandlerFunc, body string) (*http.Response, string) {
	t.Helper()

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	return resp, string(data)
}

func TestRender_JSON(t *testing.T) {
	resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		data := map[string]any{"key1": 1, "key2": "222"}
		JSON(w, data)
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"key1":1,"key2":"222"}`, body)
}

func TestRender_OK(t *testing.T) {
	resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success": true, "data": {"status": "ok"}}`, body)
}

func TestRender_Message(t *testing.T) {
	resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		Message(w, "Logged out successfully")
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success": true, "message": "Logged out successfully"}`, body)
}

func TestRender_Error(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "well known error",
			err:            apperrors.ErrUserAlreadyExists,
			expectedStatus: http.StatusConflict,
			expectedBody: `{
				"success": false,
				"error": {"code": "AUTH_USER_ALREADY_EXISTS", "message": "A user with this email already exists"}
			}`,
		},
		{
			name:           "wrapped well known error",
			err:            fmt.Errorf("db error: %w: %w", apperrors.ErrDatabase, errors.New("connection refused")),
			expectedStatus: http.StatusInternalServerError,
			expectedBody: `{
				"success": false,
				"error": {"code": "DATABASE_ERROR", "message": "Database operation failed"}
			}`,
		},
		{
			name:           "unknown error has no details",
			err:            errors.New("secret internal details"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody: `{
				"success": false,
				"error": {"code": "INTERNAL_SERVER_ERROR", "message": "Internal server error"}
			}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				Error(w, tc.err)
			}, "")

			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			assert.JSONEq(t, tc.expectedBody, body)
		})
	}
}

func TestRender_DecodeError(t *testing.T) {
	type value struct {
		Key       string `json:"key"`
		OrderName int    `json:"order_name"`
	}

	tests := []struct {
		name        string
		requestBody string
		expected    string
	}{
		{
			name:        "json parsing error",
			requestBody: `invalid-json`,
			expected:    `Failed to parse JSON: invalid character 'i' looking for beginning of value`,
		},
		{
			name:        "invalid type",
			requestBody: `{"key": "valid_json", "order_name": "but incorrect type"}`,
			expected:    `Invalid data type for field 'order_name'`,
		},
		{
			name:        "empty body",
			requestBody: ``,
			expected:    `Request body is empty`,
		},
		{
			name:        "too large body",
			requestBody: `{"key": "` + strings.Repeat("a", maxBodySize) + `"}`,
			expected:    fmt.Sprintf("Request body is too large (maximum %d bytes)", maxBodySize),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tc.requestBody))

			_, err := BindAndValidate[value](w, r)

			require.Error(t, err, "Please check what JSON was sent. Test expected that it is invalid")
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{
				"success": false,
				"error": {
					"code": "VALIDATION_ERROR",
					"message": "Validation error",
					"details": {"body": %q}
				}
			}`, tc.expected), w.Body.String())
		})
	}
}

func TestRender_ValidationErrors(t *testing.T) {
	validate := validator.New()

	type T struct {
		Username string `validate:"required"`
		Password string `validate:"min=6"`
		Email    string `validate:"email"`
		Name     string `validate:"max=3"`
		Role     string `validate:"oneof=user admin"`
	}

	resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		invalidData := T{
			Password: "123",
			Email:    "not-valid-email",
			Name:     "too long",
			Role:     "root",
		}

		err := validate.Struct(invalidData)
		require.Error(t, err, "test expects that data not pass validation")
		errs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "be sure you pass structure to validator")
		ValidationErrors(w, errs)
	}, "")

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "VALIDATION_ERROR",
			"message": "Validation error",
			"details": {
				"Username": "This field is required",
				"Password": "Value is too short (minimum 6)",
				"Email": "Invalid email address",
				"Name": "Value is too long (maximum 3)",
				"Role": "Invalid value"
			}
		}
	}`, body)
}

func TestRender_BindAndValidate(t *testing.T) {
	type User struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid request",
			requestBody:    `{"email": "a@x.com", "password": "password1"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true, "data": {"email": "a@x.com"}}`,
		},
		{
			name:           "validation failed reports json names",
			requestBody:    `{"email": "not-an-email", "password": "short"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"success": false,
				"error": {
					"code": "VALIDATION_ERROR",
					"message": "Validation error",
					"details": {
						"email": "Invalid email address",
						"password": "Value is too short (minimum 8)"
					}
				}
			}`,
		},
		{
			name:           "required fields",
			requestBody:    `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"success": false,
				"error": {
					"code": "VALIDATION_ERROR",
					"message": "Validation error",
					"details": {
						"email": "This field is required",
						"password": "This field is required"
					}
				}
			}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := serve(t, func(w http.ResponseWriter, r *http.Request) {
				user, err := BindAndValidate[User](w, r)
				if err != nil {
					return // Error response already written
				}
				OK(w, map[string]string{"email": user.Email})
			}, tc.requestBody)

			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			assert.JSONEq(t, tc.expectedBody, body)
		})
	}
}
