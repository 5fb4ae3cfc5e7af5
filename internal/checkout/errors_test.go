package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestParseErrorCode(t *testing.T) {
	assert.Equal(t, CodeSeatsAlreadyReserved, ParseErrorCode("SEATS_ALREADY_RESERVED"))
	assert.Equal(t, CodeEventHasStarted, ParseErrorCode(" event_has_started "))
	assert.Equal(t, CodeUnknown, ParseErrorCode("TEAPOT"))
	assert.Equal(t, CodeUnknown, ParseErrorCode(""))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		phase    Phase
		wantCode ErrorCode
		contains []string
	}{
		{
			name:     "section stock names section and availability",
			err:      &BackendError{Status: 409, Code: CodeSectionInsufficientStock, SectionName: "Platea Alta", Available: intPtr(3)},
			phase:    PhaseHold,
			wantCode: CodeSectionInsufficientStock,
			contains: []string{"Platea Alta", "3"},
		},
		{
			name:     "section stock without details",
			err:      &BackendError{Status: 409, Code: CodeSectionInsufficientStock},
			phase:    PhaseHold,
			wantCode: CodeSectionInsufficientStock,
			contains: []string{msgSectionNoStock},
		},
		{
			name:     "seats already reserved lists seats",
			err:      &BackendError{Status: 409, Code: CodeSeatsAlreadyReserved, ConflictingSeats: []string{"A-1", "B-4"}},
			phase:    PhaseHold,
			wantCode: CodeSeatsAlreadyReserved,
			contains: []string{"A-1, B-4"},
		},
		{
			name:     "insufficient stock",
			err:      &BackendError{Status: 409, Code: CodeInsufficientStock, Message: "ignored"},
			phase:    PhaseHold,
			wantCode: CodeInsufficientStock,
			contains: []string{msgInsufficientStock},
		},
		{
			name:     "event started",
			err:      &BackendError{Status: 422, Code: CodeEventHasStarted},
			phase:    PhaseHold,
			wantCode: CodeEventHasStarted,
			contains: []string{msgEventHasStarted},
		},
		{
			name:     "unknown code keeps server message",
			err:      &BackendError{Status: 500, RawCode: "BOOM", Message: "Servicio no disponible"},
			phase:    PhasePayment,
			wantCode: CodeUnknown,
			contains: []string{"Servicio no disponible"},
		},
		{
			name:     "wrapped backend error",
			err:      fmt.Errorf("create hold: %w", &BackendError{Status: 409, Code: CodeInsufficientStock}),
			phase:    PhaseHold,
			wantCode: CodeInsufficientStock,
			contains: []string{msgInsufficientStock},
		},
		{
			name:     "transport failure in hold phase",
			err:      context.DeadlineExceeded,
			phase:    PhaseHold,
			wantCode: CodeUnknown,
			contains: []string{msgHoldFailed},
		},
		{
			name:     "transport failure in payment phase",
			err:      errors.New("connection refused"),
			phase:    PhasePayment,
			wantCode: CodeUnknown,
			contains: []string{msgPaymentFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Translate(tt.err, tt.phase)
			assert.Equal(t, tt.wantCode, code)
			for _, want := range tt.contains {
				assert.True(t, strings.Contains(msg, want), "message %q should contain %q", msg, want)
			}
		})
	}
}

func TestBackendError(t *testing.T) {
	err := &BackendError{Status: http.StatusUnauthorized, Message: "token expired"}
	assert.True(t, err.IsUnauthorized())
	assert.Equal(t, "backend error (status 401): token expired", err.Error())

	err = &BackendError{Status: http.StatusConflict, Code: CodeInsufficientStock, Message: "no stock"}
	assert.False(t, err.IsUnauthorized())
	assert.Equal(t, "backend error INSUFFICIENT_STOCK (status 409): no stock", err.Error())
}
