package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is a parsed storage error: a stable code plus a client-safe message.
type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError converts a raw storage error into an ErrorInfo without leaking
// driver internals to the client.
func ParseError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "an internal error occurred",
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: "resource not found",
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return parseDuplicateKeyError(err.Error())
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorInfo{
			Code:    InternalDatabaseError,
			Message: "storage is temporarily unavailable, please retry",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: "an internal error occurred",
	}
}

// ParseAndRespond parses a storage error and writes the standard
// error response in one step.
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error) {
	info := ParseError(err)
	c.JSON(statusCode, ErrorResponse{
		Error:   info.Code,
		Message: info.Message,
	})
}

func parseDuplicateKeyError(errStr string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	if strings.Contains(errLower, "email") {
		return ErrorInfo{
			Code:    AuthEmailAlreadyExists,
			Message: "email is already in use",
		}
	}

	if strings.Contains(errLower, "products") && strings.Contains(errLower, "name") {
		return ErrorInfo{
			Code:    ProductNameExists,
			Message: "a product with this name already exists",
		}
	}

	return ErrorInfo{
		Code:    ResourceAlreadyExists,
		Message: "resource already exists",
	}
}
