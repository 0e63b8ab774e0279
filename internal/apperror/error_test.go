package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestTaxonomyConstructors(t *testing.T) {
	cause := context.DeadlineExceeded

	tests := []struct {
		name       string
		err        *AppError
		wantCode   Code
		wantStatus int
	}{
		{"connection", ConnectionFailure("uniswap getReserves", cause), CodeConnectionFailure, http.StatusServiceUnavailable},
		{"quote", QuoteUnavailable("zero reserves", nil), CodeQuoteUnavailable, http.StatusUnprocessableEntity},
		{"rejected", ExecutionRejected("estimate gas", cause), CodeExecutionRejected, http.StatusUnprocessableEntity},
		{"timeout", ExecutionTimeout("0xabc", cause), CodeExecutionTimeout, http.StatusServiceUnavailable},
		{"config", Configuration("tokens: empty"), CodeConfigurationError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.wantStatus)
			}
			if !strings.HasPrefix(tt.err.Error(), string(tt.wantCode)) {
				t.Errorf("Error() = %q", tt.err.Error())
			}
			wrapped := fmt.Errorf("cycle 7: %w", tt.err)
			if GetCode(wrapped) != tt.wantCode {
				t.Errorf("GetCode through wrap = %s", GetCode(wrapped))
			}
			if !errors.Is(wrapped, New(tt.wantCode)) {
				t.Error("errors.Is should match by code")
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}

	orig := QuoteUnavailable("no pool", nil)
	if got := Wrap(orig, CodeConnectionFailure, "other"); got != orig {
		t.Error("Wrap should keep an existing AppError unchanged")
	}

	plain := errors.New("dial tcp: refused")
	got := Wrap(plain, CodeConnectionFailure, "rpc")
	if !IsConnectionFailure(got) {
		t.Errorf("code = %s", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Error("cause should be reachable with errors.Is")
	}
}

func TestGetCode_Unknown(t *testing.T) {
	if GetCode(nil) != "" {
		t.Errorf("GetCode(nil) = %s", GetCode(nil))
	}
	if GetCode(errors.New("x")) != CodeUnknownError {
		t.Error("plain errors should map to UNKNOWN_ERROR")
	}
	if IsConfigurationError(errors.New("x")) {
		t.Error("plain error is not a configuration error")
	}
}

func TestToResponse(t *testing.T) {
	resp := Configuration("venues[1].kind").ToResponse()
	body, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error body: %v", resp)
	}
	if body["code"] != CodeConfigurationError {
		t.Errorf("code = %v", body["code"])
	}
	if body["context"] != "venues[1].kind" {
		t.Errorf("context = %v", body["context"])
	}
}
