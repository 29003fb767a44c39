package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
)

func TestRespondErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        apierr.Validationf("quantity must be positive"),
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodeValidation,
			wantMsg:    "quantity must be positive",
		},
		{
			name:       "not found",
			err:        apierr.NotFoundf("group order not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   apierr.CodeNotFound,
			wantMsg:    "group order not found",
		},
		{
			name:       "conflict",
			err:        apierr.Conflictf("quantity cap exceeded"),
			wantStatus: http.StatusConflict,
			wantCode:   apierr.CodeConflict,
			wantMsg:    "quantity cap exceeded",
		},
		{
			name:       "internal cause is masked",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apierr.CodeInternal,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)

			RespondError(c, tt.err)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var envelope ErrorEnvelope
			if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
			if envelope.Error.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", envelope.Error.Message, tt.wantMsg)
			}
		})
	}
}
