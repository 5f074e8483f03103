// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeStaleBase    ErrorType = "stale_base" // 请求携带的lastSceneId已不是最新场景
	ErrorTypeInFlight     ErrorType = "in_flight"  // 同一小说已有生成请求进行中
	ErrorTypeGeneration   ErrorType = "generation_error"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的 AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     cause,
		Code:    codeFor(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, nil)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, cause error) *AppError {
	return New(ErrorTypeNotFound, message, cause)
}

// NewStaleBaseError 创建场景基准过期错误
func NewStaleBaseError(message string) *AppError {
	return New(ErrorTypeStaleBase, message, nil)
}

// NewInFlightError 创建生成请求冲突错误
func NewInFlightError(message string) *AppError {
	return New(ErrorTypeInFlight, message, nil)
}

// NewGenerationError 创建AI生成错误
func NewGenerationError(message string, cause error) *AppError {
	return New(ErrorTypeGeneration, message, cause)
}

// NewUnauthorizedError 创建未授权错误
func NewUnauthorizedError(message string, cause error) *AppError {
	return New(ErrorTypeUnauthorized, message, cause)
}

// AsAppError 提取错误链中的 AppError
func AsAppError(err error) (*AppError, bool) {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError, true
	}
	return nil, false
}

// IsType 检查错误是否属于指定类型
func IsType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// IsNotFound 检查是否为未找到错误
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsStaleBase 检查是否为场景基准过期错误
func IsStaleBase(err error) bool { return IsType(err, ErrorTypeStaleBase) }

// IsInFlight 检查是否为生成请求冲突错误
func IsInFlight(err error) bool { return IsType(err, ErrorTypeInFlight) }

// IsValidation 检查是否为验证错误
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// Wrap 包装现有错误，保留已有 AppError 的类型
func Wrap(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return New(errType, message, err)
}

// codeFor 根据错误类型生成对外的错误代码
func codeFor(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeStaleBase:
		return "STALE_BASE"
	case ErrorTypeInFlight:
		return "GENERATION_IN_FLIGHT"
	case ErrorTypeGeneration:
		return "GENERATION_FAILED"
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_ERROR"
	}
}
