package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 错误码常量（使用 internal/errors 包的定义）
const (
	CodeSuccess = apperrors.CodeSuccess

	// 认证相关 10000-10999
	CodeUsernameExists     = apperrors.CodeUsernameExists
	CodeEmailExists        = apperrors.CodeEmailExists
	CodeInvalidCredentials = apperrors.CodeInvalidCredentials
	CodeTokenInvalid       = apperrors.CodeTokenInvalid
	CodeTokenExpired       = apperrors.CodeTokenExpired
	CodeUserDisabled       = apperrors.CodeUserDisabled

	// 用户相关 11000-11999
	CodeUserNotFound  = apperrors.CodeUserNotFound
	CodeInvalidParams = apperrors.CodeInvalidParams

	// 聊天相关 12000-12999
	CodeAccessDenied      = apperrors.CodeAccessDenied
	CodeChatNotFound      = apperrors.CodeChatNotFound
	CodeMessageNotFound   = apperrors.CodeMessageNotFound
	CodeEmptyContent      = apperrors.CodeEmptyContent
	CodeNoAgentAvailable  = apperrors.CodeNoAgentAvailable
	CodeNoParticipants    = apperrors.CodeNoParticipants
	CodeNotSupportAgent   = apperrors.CodeNotSupportAgent
	CodeOnlyClientAllowed = apperrors.CodeOnlyClientAllowed

	// 系统错误 50000-50999
	CodeServerError = apperrors.CodeServerError
	CodeDBError     = apperrors.CodeDBError
)

var codeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeUsernameExists:     "username already exists",
	CodeEmailExists:        "email already exists",
	CodeInvalidCredentials: "invalid username or password",
	CodeTokenInvalid:       "token is invalid",
	CodeTokenExpired:       "token has expired",
	CodeUserDisabled:       "user account disabled",
	CodeUserNotFound:       "user not found",
	CodeInvalidParams:      "invalid parameters",
	CodeAccessDenied:       "access denied: not an active chat participant",
	CodeChatNotFound:       "chat not found",
	CodeMessageNotFound:    "message not found",
	CodeEmptyContent:       "message content is required",
	CodeNoAgentAvailable:   "no available support agents",
	CodeNoParticipants:     "no participants found",
	CodeNotSupportAgent:    "user is not a support agent",
	CodeOnlyClientAllowed:  "only clients can create support chats",
	CodeServerError:        "internal server error",
	CodeDBError:            "database error",
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int) {
	message := codeMessages[code]
	if message == "" {
		message = "unknown error"
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorWithMsg 携带自定义消息的错误响应
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromAppError 从 AppError 生成错误响应
func ErrorFromAppError(c *gin.Context, err error) {
	c.JSON(http.StatusOK, Response{
		Code:    apperrors.GetCode(err),
		Message: apperrors.GetMessage(err),
		Data:    nil,
	})
}

// Unauthorized 未认证
func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    CodeTokenInvalid,
		Message: codeMessages[CodeTokenInvalid],
		Data:    nil,
	})
}
