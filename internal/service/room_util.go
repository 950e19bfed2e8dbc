package service

import (
	"time"

	"conspiracy-be/internal/service/game"
)

// 事件循环中的请求种类
const (
	REQ_KIND_CONNECT    = "connect"
	REQ_KIND_DISCONNECT = "disconnect"
	REQ_KIND_EVENT      = "event"
	REQ_KIND_QUERY      = "query"
)

type RoomRequestAction struct {
	Kind    string
	ConnID  string
	Wrapper game.RequestWrapper

	// 仅 REQ_KIND_QUERY 使用：在事件循环中执行 Query，完成后关闭 DoneCh
	Query  func()
	DoneCh chan struct{}
}

// 结束超过 ttl 的房间需要被清理
func isRoomExpired(room *game.Room, now time.Time, ttl time.Duration) bool {
	if room == nil || ttl <= 0 {
		return false
	}

	if !room.IsFinished() || room.EndedAt().IsZero() {
		return false
	}

	return now.Sub(room.EndedAt()) >= ttl
}
