package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestIsErrCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrCode
		want bool
	}{
		{name: "nil", err: nil, code: ErrCodeInternal, want: false},
		{name: "direct", err: NewBatchEmptyError(), code: ErrCodeBatchEmpty, want: true},
		{name: "wrapped", err: fmt.Errorf("predict: %w", NewModeUnsupportedError("train")), code: ErrCodeModeUnsupported, want: true},
		{name: "other code", err: NewBatchEmptyError(), code: ErrCodeImageInvalid, want: false},
		{name: "plain error", err: fmt.Errorf("boom"), code: ErrCodeUnknow, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsErrCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsErrCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImageInvalidError(t *testing.T) {
	err := NewImageInvalidError(3, fmt.Errorf("not a jpeg"))
	if err.HttpStatus != http.StatusBadRequest {
		t.Errorf("HttpStatus = %d, want %d", err.HttpStatus, http.StatusBadRequest)
	}
	if want := "IMAGE_INVALID: image 3: not a jpeg"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
