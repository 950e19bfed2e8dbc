package game

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenID 生成按时间有序的连接 ID，时钟异常时退回随机 UUID
func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		zap.L().Warn("生成 UUIDv7 失败，改用随机 UUID", zap.Error(err))
		return uuid.NewString()
	}

	return id.String()
}
