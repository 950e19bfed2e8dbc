package service

import (
	"strings"
	"unicode/utf8"

	"conspiracy-be/internal/service/game"

	"go.uber.org/zap"
)

const (
	MIN_NAME_LEN = 2
	MAX_NAME_LEN = 32
)

// Session 记录一个连接声明的昵称和所在房间，两者都可以为空
type Session struct {
	ConnID string
	Name   string
	RoomID string
}

// SessionRegistry 由 RoomService 的事件循环独占访问，因此不加锁
type SessionRegistry struct {
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
	}
}

func (sr *SessionRegistry) Register(connID string) {
	sr.sessions[connID] = &Session{ConnID: connID}

	zap.L().Debug("注册连接", zap.String("conn_id", connID))
}

// SetDisplayName 保存去除首尾空白后的昵称并返回它
func (sr *SessionRegistry) SetDisplayName(connID, name string) (string, error) {
	sess, ok := sr.sessions[connID]
	if !ok {
		return "", game.Errorf(game.ErrNotReady, "连接尚未注册")
	}

	trimmed, err := validateName(name, "昵称")
	if err != nil {
		return "", err
	}

	sess.Name = trimmed

	zap.L().Info(
		"设置昵称",
		zap.String("conn_id", connID),
		zap.String("name", trimmed),
	)

	return trimmed, nil
}

// 返回会话的副本
func (sr *SessionRegistry) Get(connID string) (Session, bool) {
	sess, ok := sr.sessions[connID]
	if !ok {
		return Session{}, false
	}

	return *sess, true
}

func (sr *SessionRegistry) SetRoom(connID, roomID string) {
	if sess, ok := sr.sessions[connID]; ok {
		sess.RoomID = roomID
	}
}

// Remove 只丢弃会话本身，调用方必须先执行离开房间的流程
func (sr *SessionRegistry) Remove(connID string) {
	delete(sr.sessions, connID)

	zap.L().Debug("移除连接", zap.String("conn_id", connID))
}

func (sr *SessionRegistry) Count() int {
	return len(sr.sessions)
}

func validateName(name, label string) (string, error) {
	trimmed := strings.TrimSpace(name)
	length := utf8.RuneCountInString(trimmed)

	if length < MIN_NAME_LEN {
		return "", game.Errorf(game.ErrValidation, "%s至少需要 %d 个字符", label, MIN_NAME_LEN)
	}

	if length > MAX_NAME_LEN {
		return "", game.Errorf(game.ErrValidation, "%s不能超过 %d 个字符", label, MAX_NAME_LEN)
	}

	return trimmed, nil
}
