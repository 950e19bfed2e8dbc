package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// NOTE: 暂时允许所有来源
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	// 默认心跳间隔
	HEARTBEAT_INTERVAL = 30 * time.Second
	// 默认心跳超时时间
	HEARTBEAT_TIMEOUT = 45 * time.Second

	// 单条消息的最大字节数
	MAX_MESSAGE_SIZE = 8 * 1024
	// 每个连接待发送消息的缓冲数量
	SEND_BUFFER = 64
	// 写入单条消息的超时时间
	WRITE_TIMEOUT = 10 * time.Second
)

type HeartbeatConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (hc HeartbeatConfig) withDefaults() HeartbeatConfig {
	if hc.Interval <= 0 {
		hc.Interval = HEARTBEAT_INTERVAL
	}

	if hc.Timeout <= hc.Interval {
		hc.Timeout = hc.Interval + hc.Interval/2
	}

	return hc
}

var heartbeatHandler = func(conn *websocket.Conn, timeout time.Duration) func(string) error {
	return func(string) error {
		conn.SetReadDeadline(time.Now().Add(timeout))
		return nil
	}
}
