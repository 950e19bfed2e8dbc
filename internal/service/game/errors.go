package game

import (
	"errors"
	"fmt"
)

// 错误类别，所有类别都只回报给请求者，不影响其他玩家
var (
	ErrValidation    = errors.New("validation error")
	ErrNotReady      = errors.New("not ready")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrAuthorization = errors.New("not authorized")
	ErrCapacity      = errors.New("room is full")
	ErrPrecondition  = errors.New("precondition failed")
)

// Error 的 Error() 是直接展示给客户端的提示，Kind 用于 errors.Is 判断类别
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Errorf(kind error, format string, args ...any) error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
}
