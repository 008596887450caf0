package errors

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError // 默认返回服务器错误
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 认证相关 10000-10999
	CodeUsernameExists     = 10001
	CodeEmailExists        = 10002
	CodeInvalidCredentials = 10003
	CodeTokenInvalid       = 10004
	CodeTokenExpired       = 10005
	CodeUserDisabled       = 10006

	// 用户相关 11000-11999
	CodeUserNotFound  = 11001
	CodeInvalidParams = 11002

	// 聊天相关 12000-12999
	CodeAccessDenied      = 12001
	CodeChatNotFound      = 12002
	CodeMessageNotFound   = 12003
	CodeEmptyContent      = 12004
	CodeNoAgentAvailable  = 12005
	CodeNoParticipants    = 12006
	CodeNotSupportAgent   = 12007
	CodeOnlyClientAllowed = 12008

	// 系统错误 50000-50999
	CodeServerError   = 50001
	CodeDBError       = 50002
	CodeTooManyReqest = 50003
)

// ============== 预定义错误 ==============

// 认证相关
var (
	ErrUsernameExists     = NewError(CodeUsernameExists, "username already exists")
	ErrEmailExists        = NewError(CodeEmailExists, "email already exists")
	ErrInvalidCredentials = NewError(CodeInvalidCredentials, "invalid username or password")
	ErrTokenInvalid       = NewError(CodeTokenInvalid, "token is invalid")
	ErrTokenExpired       = NewError(CodeTokenExpired, "token has expired")
	ErrUserDisabled       = NewError(CodeUserDisabled, "user account disabled")
)

// 用户相关
var (
	ErrUserNotFound  = NewError(CodeUserNotFound, "user not found")
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid parameters")
)

// 聊天相关
var (
	ErrAccessDenied      = NewError(CodeAccessDenied, "access denied: not an active chat participant")
	ErrChatNotFound      = NewError(CodeChatNotFound, "chat not found")
	ErrMessageNotFound   = NewError(CodeMessageNotFound, "message not found")
	ErrEmptyContent      = NewError(CodeEmptyContent, "message content is required")
	ErrNoAgentAvailable  = NewError(CodeNoAgentAvailable, "no available support agents")
	ErrNoParticipants    = NewError(CodeNoParticipants, "no participants found")
	ErrNotSupportAgent   = NewError(CodeNotSupportAgent, "user is not a support agent")
	ErrOnlyClientAllowed = NewError(CodeOnlyClientAllowed, "only clients can create support chats")
)

// 系统相关
var (
	ErrServerError    = NewError(CodeServerError, "internal server error")
	ErrDBError        = NewError(CodeDBError, "database error")
	ErrTooManyRequest = NewError(CodeTooManyReqest, "too many requests, try again later")
)
