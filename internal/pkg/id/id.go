package id

import (
	"strings"

	"github.com/google/uuid"
)

// maxExternalIDLen 客户端生成 ID 的最大长度
const maxExternalIDLen = 128

// New 生成新的UUID（string格式）
func New() string {
	return uuid.New().String()
}

// IsValidExternal 校验客户端生成的 ID（如 conversationId）
// 不要求 UUID 格式，只拒绝空白、过长和含控制字符的值
func IsValidExternal(s string) bool {
	if strings.TrimSpace(s) == "" || len(s) > maxExternalIDLen {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
