package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeProviderNotConfigured, "no client for provider openai")

	if err == nil {
		t.Fatal("New should return non-nil error")
	}
	if err.Code != ErrCodeProviderNotConfigured {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeProviderNotConfigured)
	}
	if err.Message != "no client for provider openai" {
		t.Errorf("Message = %v", err.Message)
	}
	if err.Underlying != nil {
		t.Error("Underlying should be nil for New error")
	}
	if err.Retryable {
		t.Error("Retryable should default to false")
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("original error")
	err := Wrap(underlying, ErrCodeStorageRead, "failed to read storage")

	if err == nil {
		t.Fatal("Wrap should return non-nil error")
	}
	if err.Underlying != underlying {
		t.Error("Underlying should be preserved")
	}
	if err.Code != ErrCodeStorageRead {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeStorageRead)
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Error("Error string should include underlying error")
	}
}

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "test"); err != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("root cause")
	err := Wrap(underlying, ErrCodeNetworkError, "request failed")

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error through Unwrap")
	}
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeInvalidModelFormat, "bad model string").
		WithContext("model", "no-slash")

	if err.Context["model"] != "no-slash" {
		t.Error("context value not stored")
	}
	if !strings.Contains(err.Error(), "no-slash") {
		t.Error("Error string should include context")
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeRateLimited, "too many requests")

	if !IsCode(err, ErrCodeRateLimited) {
		t.Error("IsCode should match")
	}
	if IsCode(err, ErrCodeServerError) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(nil, ErrCodeRateLimited) {
		t.Error("IsCode(nil) should be false")
	}
	if IsCode(errors.New("plain"), ErrCodeRateLimited) {
		t.Error("IsCode should be false for non-structured errors")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeEmptyResponse, "")); got != ErrCodeEmptyResponse {
		t.Errorf("GetCode = %v", got)
	}
	if got := GetCode(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("GetCode for plain error = %v, want INTERNAL", got)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %v, want empty", got)
	}
}

func TestRetryable(t *testing.T) {
	err := New(ErrCodeRateLimited, "slow down").WithRetryable(true)
	if !err.IsRetryable() {
		t.Error("expected retryable")
	}
}
