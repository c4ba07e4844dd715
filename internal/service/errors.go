// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
)

// 业务错误分级：处理器据此映射 HTTP 状态码与响应标记位。
// 所有面向终端用户的失败最终都降级为可操作的文案（联系邮箱/电话），
// 不向用户暴露原始技术细节。
var (
	// ErrSessionExpired 表示会话 TTL 已过，前端应透明地重建会话。
	ErrSessionExpired = errors.New("session expired")
	// ErrRateLimited 表示会话消息数已达上限，状态未被改动。
	ErrRateLimited = errors.New("message limit reached")
	// ErrMessageTooLong 表示消息超长，状态未被改动。
	ErrMessageTooLong = errors.New("message too long")
)

// ValidationError 表示请求字段校验失败，携带字段级的提示文案。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// UploadRejectedError 表示上传的文件未通过类型或大小校验。
type UploadRejectedError struct {
	Message string
}

func (e *UploadRejectedError) Error() string {
	return e.Message
}
