// Package respond 定义统一的 JSON 响应信封与请求校验错误的映射。
//
// 所有接口的响应都是 {success, message?, data?, errors?} 结构；
// 校验失败返回 errors 数组，每项包含字段名、原因和提交的原始值。
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 统一响应结构。
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError 单个字段的校验错误。
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Data 成功响应，携带数据。
func Data(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// OK 成功响应，仅携带消息。
func OK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

// Error 失败响应。
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

// AbortError 失败响应并中断后续 handler（供中间件使用）。
func AbortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// ValidationFailed 校验失败响应。
func ValidationFailed(c *gin.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, Envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  errs,
	})
}
