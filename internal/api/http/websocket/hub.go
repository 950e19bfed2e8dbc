package websocket

import (
	"sync"

	"conspiracy-be/internal/service/game"

	"go.uber.org/zap"
)

type client struct {
	connID string
	sendCh chan game.ResponseWrapper
}

// Hub 保存所有在线连接的发送队列，实现 service.Transport。
// 发送不阻塞，队列满时丢弃消息
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

func (h *Hub) register(connID string) *client {
	c := &client{
		connID: connID,
		sendCh: make(chan game.ResponseWrapper, SEND_BUFFER),
	}

	h.mu.Lock()
	h.clients[connID] = c
	h.mu.Unlock()

	return c
}

// unregister 关闭发送队列，写协程随之退出
func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[connID]; ok {
		delete(h.clients, connID)
		close(c.sendCh)
	}
}

func (h *Hub) Send(connID string, resp game.ResponseWrapper) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		zap.L().Debug(
			"连接不存在，丢弃消息",
			zap.String("conn_id", connID),
			zap.String("response_type", resp.RespType),
		)
		return
	}

	h.push(c, resp)
}

func (h *Hub) Broadcast(resp game.ResponseWrapper) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		h.push(c, resp)
	}
}

// 调用方需持有读锁
func (h *Hub) push(c *client, resp game.ResponseWrapper) {
	select {
	case c.sendCh <- resp:
	default:
		zap.L().Warn(
			"发送队列已满，丢弃消息",
			zap.String("conn_id", c.connID),
			zap.String("response_type", resp.RespType),
		)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
