package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperThree stands in for the catalog's city rule.
func upperThree(s string) bool {
	return len(s) == 3 && strings.ToUpper(s) == s
}

type cityPayload struct {
	Name string `json:"name" validate:"required"`
	City string `json:"city" validate:"required,citycode"`
}

func Test_DecodeValid(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	validate := NewValidator(StringRule{Tag: "citycode", Valid: upperThree})
	testCases := []struct {
		name         string
		body         string
		expectedOK   bool
		expectedCode int
		expectedBody string
	}{
		{
			name:       "valid body",
			body:       `{"name":"Central","city":"BOG"}`,
			expectedOK: true,
		},
		{
			name:         "malformed json",
			body:         `{"name":`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:         "lowercase city",
			body:         `{"name":"Central","city":"bog"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"City":"failed on rule: citycode"}}`,
		},
		{
			name:         "missing fields",
			body:         `{}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Name":"failed on rule: required","City":"failed on rule: required"}}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			var dst cityPayload
			// when
			ok := DecodeValid(rr, req, logger, validate, &dst)
			// then
			require.Equal(t, tc.expectedOK, ok)
			if tc.expectedOK {
				assert.Equal(t, "BOG", dst.City)
				return
			}
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_ParsePathID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	testCases := []struct {
		name       string
		value      string
		expectedOK bool
	}{
		{name: "valid uuid", value: "123e4567-e89b-12d3-a456-426614174000", expectedOK: true},
		{name: "invalid uuid", value: "66f1c0ffee", expectedOK: false},
		{name: "empty", value: "", expectedOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.SetPathValue("productId", tc.value)
			rr := httptest.NewRecorder()

			id, ok := ParsePathID(rr, req, logger, "productId")

			assert.Equal(t, tc.expectedOK, ok)
			if ok {
				assert.Equal(t, tc.value, id.String())
			} else {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.JSONEq(t, `{"error":"Invalid ID: `+tc.value+`"}`, rr.Body.String())
			}
		})
	}
}

func Test_ParseIDs(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rr := httptest.NewRecorder()
	ids, ok := ParseIDs(rr, logger, []string{"123e4567-e89b-12d3-a456-426614174000", "bad"})
	assert.False(t, ok)
	assert.Nil(t, ids)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	ids, ok = ParseIDs(rr, logger, []string{})
	assert.True(t, ok)
	assert.Empty(t, ids)
}

func Test_NewValidator_UnknownTagPanics(t *testing.T) {
	// given
	validate := NewValidator()
	payload := cityPayload{Name: "Central", City: "BOG"}

	// when / then
	assert.Panics(t, func() { _ = validate.Struct(payload) })
}
