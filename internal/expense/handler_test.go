package expense

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/splitledger/pkg/middleware"
)

func serve(t *testing.T, h *Handler, userID int64, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHandlerCreate(t *testing.T) {
	tests := []struct {
		name     string
		userID   int64
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "equal split in a group",
			userID:   1,
			body:     `{"group_id":10,"description":"Dinner","amount":"90.00","split_type":"EQUAL"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "percentages off by more than the tolerance",
			userID:   1,
			body:     `{"description":"Hotel","amount":"100.00","split_type":"PERCENTAGE","participants":[1,2],"split":{"percentages":{"1":"60","2":"30"}}}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "PERCENTAGE_MISMATCH",
		},
		{
			name:     "not a group member",
			userID:   4,
			body:     `{"group_id":10,"description":"Dinner","amount":"90.00","split_type":"EQUAL"}`,
			wantCode: http.StatusForbidden,
			wantErr:  "FORBIDDEN",
		},
		{
			name:     "malformed body",
			userID:   1,
			body:     `{"amount":`,
			wantCode: http.StatusBadRequest,
			wantErr:  "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newFixture().service)
			rec := serve(t, h, tt.userID, http.MethodPost, "/", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			env := decode(t, rec)
			if tt.wantErr == "" {
				assert.True(t, env.Success)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestHandlerGetAndDelete(t *testing.T) {
	f := newFixture()
	e := createDinner(t, f)
	h := NewHandler(f.service)

	rec := serve(t, h, 2, http.MethodGet, "/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got ExpenseResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Len(t, got.Splits, 3)

	rec = serve(t, h, 2, http.MethodDelete, "/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, 1, http.MethodDelete, "/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, 1, http.MethodGet, "/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h, 1, http.MethodGet, "/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
