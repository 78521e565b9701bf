package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/opencontainers/go-digest"
)

const (
	ErrCodeCheckpointInvalid   ErrCode = "CHECKPOINT_INVALID"
	ErrCodeArchitectureUnknown ErrCode = "ARCHITECTURE_UNKNOWN"
	ErrCodeImageInvalid        ErrCode = "IMAGE_INVALID"
	ErrCodeBatchEmpty          ErrCode = "BATCH_EMPTY"
	ErrCodeModeUnsupported     ErrCode = "MODE_UNSUPPORTED"
	ErrCodeSignatureUnknown    ErrCode = "SIGNATURE_UNKNOWN"
	ErrCodeServableInvalid     ErrCode = "SERVABLE_INVALID"
	ErrCodeServableUnknown     ErrCode = "SERVABLE_UNKNOWN"
	ErrCodeBlobUnknown         ErrCode = "BLOB_UNKNOWN"
	ErrCodeDigestInvalid       ErrCode = "DIGEST_INVALID"
	ErrCodeUnauthorized        ErrCode = "UNAUTHORIZED"
	ErrCodeUnsupported         ErrCode = "UNSUPPORTED"
	ErrCodeInvalidParameter    ErrCode = "INVALID_PARAMETER"
	ErrCodeUnknow              ErrCode = "UNKNOWN"
	ErrCodeInternal            ErrCode = "INTERNAL"
)

type ErrCode string

type ErrorInfo struct {
	HttpStatus int     `json:"-"`
	Code       ErrCode `json:"code"`
	Message    string  `json:"message"`
	Detail     string  `json:"detail,omitempty"`
}

func (e ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsErrCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code == code
	}
	return false
}

func NewUnauthorizedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: msg}
}

func NewUnsupportedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotImplemented, Code: ErrCodeUnsupported, Message: msg}
}

func NewInternalError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeInternal, Message: err.Error()}
}

func NewDigestInvalidError(name string, expected, got digest.Digest) ErrorInfo {
	return ErrorInfo{
		HttpStatus: http.StatusBadRequest,
		Code:       ErrCodeDigestInvalid,
		Message:    fmt.Sprintf("digest mismatch: %s", name),
		Detail:     fmt.Sprintf("expected %s, got %s", expected, got),
	}
}

func NewBlobUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeBlobUnknown, Message: fmt.Sprintf("blob: %s not found", name)}
}

func NewCheckpointInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeCheckpointInvalid, Message: msg}
}

func NewArchitectureUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeArchitectureUnknown, Message: fmt.Sprintf("architecture: %s not registered", name)}
}

func NewImageInvalidError(index int, err error) ErrorInfo {
	return ErrorInfo{
		HttpStatus: http.StatusBadRequest,
		Code:       ErrCodeImageInvalid,
		Message:    fmt.Sprintf("image %d: %v", index, err),
	}
}

func NewBatchEmptyError() ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeBatchEmpty, Message: "no images in request"}
}

func NewModeUnsupportedError(mode string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotImplemented, Code: ErrCodeModeUnsupported, Message: fmt.Sprintf("mode %s is not supported", mode)}
}

func NewSignatureUnknownError(key string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeSignatureUnknown, Message: fmt.Sprintf("signature: %s not found", key)}
}

func NewServableInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeServableInvalid, Message: msg}
}

func NewServableUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeServableUnknown, Message: fmt.Sprintf("servable: %s not found", name)}
}

func NewParameterInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidParameter, Message: msg}
}
