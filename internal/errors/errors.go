// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 生成管线专用错误类型
	ErrorTypeInputQuality ErrorType = "input_quality_too_low"
	ErrorTypeProvider     ErrorType = "provider_call_failed"
	ErrorTypeExhausted    ErrorType = "generation_exhausted"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
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

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewInputQualityError 输入质量低于硬下限时的致命错误
func NewInputQualityError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeInputQuality, message, originalError)
}

// NewProviderError 生成服务提供商调用失败
func NewProviderError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProvider, message, originalError)
}

// NewExhaustedError 重试耗尽后的错误
func NewExhaustedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeExhausted, message, originalError)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsInputQualityError 检查是否为输入质量错误
func IsInputQualityError(err error) bool {
	return hasType(err, ErrorTypeInputQuality)
}

// IsExhaustedError 检查是否为重试耗尽错误
func IsExhaustedError(err error) bool {
	return hasType(err, ErrorTypeExhausted)
}

func hasType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeInputQuality:
		return "INPUT_QUALITY_TOO_LOW"
	case ErrorTypeProvider:
		return "PROVIDER_CALL_FAILED"
	case ErrorTypeExhausted:
		return "GENERATION_EXHAUSTED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
