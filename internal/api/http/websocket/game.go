package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"conspiracy-be/internal/service"
	"conspiracy-be/internal/service/game"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// Gateway 把 WebSocket 连接接入房间服务：读到的请求提交到事件循环，
// 服务产生的消息经由 Hub 写回
type Gateway struct {
	// 房间服务的生命周期，断开事件必须在它结束前送达
	svcCtx context.Context

	roomSvc   *service.RoomService
	hub       *Hub
	heartbeat HeartbeatConfig

	wg sync.WaitGroup
}

func NewGateway(
	svcCtx context.Context,
	roomSvc *service.RoomService,
	hub *Hub,
	heartbeat HeartbeatConfig,
) *Gateway {
	return &Gateway{
		svcCtx:    svcCtx,
		roomSvc:   roomSvc,
		hub:       hub,
		heartbeat: heartbeat.withDefaults(),
	}
}

func JoinGame(gw *Gateway) iris.Handler {
	return func(ctx iris.Context) {
		gw.ServeConn(ctx.ResponseWriter(), ctx.Request())
	}
}

// ServeConn 处理一个连接的完整生命周期，直到客户端断开或心跳超时
func (gw *Gateway) ServeConn(w http.ResponseWriter, r *http.Request) {
	gw.wg.Add(1)
	defer gw.wg.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		zap.L().Error("升级到WebSocket失败", zap.Error(err))
		return
	}

	defer conn.Close()

	connID := game.GenID()
	clientIP := r.RemoteAddr

	conn.SetReadLimit(MAX_MESSAGE_SIZE)
	conn.SetReadDeadline(time.Now().Add(gw.heartbeat.Timeout))
	conn.SetPongHandler(heartbeatHandler(conn, gw.heartbeat.Timeout))

	// 先注册发送队列，保证连接建立后的第一条消息不会丢失
	c := gw.hub.register(connID)

	if err := gw.roomSvc.Connect(r.Context(), connID); err != nil {
		zap.L().Error(
			"注册连接失败",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		gw.hub.unregister(connID)
		return
	}

	zap.L().Info(
		"客户端已连接",
		zap.String("client_ip", clientIP),
		zap.String("conn_id", connID),
	)

	writeDoneCh := make(chan struct{})
	go gw.writePump(conn, c, clientIP, writeDoneCh)

	gw.readPump(conn, connID, clientIP)

	// 读循环退出，表示客户端断开连接，通知房间服务执行离开流程。
	// 队列满时一直等待，只有房间服务退出才放弃
	if err := gw.roomSvc.Disconnect(gw.svcCtx, connID); err != nil {
		zap.L().Warn(
			"发送断开事件失败",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
	}

	gw.hub.unregister(connID)
	<-writeDoneCh

	zap.L().Info(
		"WebSocket连接处理完成",
		zap.String("client_ip", clientIP),
		zap.String("conn_id", connID),
	)
}

// Wait 等待所有连接处理结束，调用前房间服务必须仍在运行
func (gw *Gateway) Wait() {
	gw.wg.Wait()
}

func (gw *Gateway) readPump(conn *websocket.Conn, connID, clientIP string) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				zap.L().Error(
					"读取消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
			}

			return
		}

		conn.SetReadDeadline(time.Now().Add(gw.heartbeat.Timeout))

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil || wrapper.ReqType == "" {
			zap.L().Debug(
				"解析消息失败",
				zap.String("conn_id", connID),
				zap.Error(err),
			)

			gw.hub.Send(connID, game.WrapErrResponse("请求格式无效"))

			continue
		}

		if err := gw.roomSvc.Submit(connID, wrapper); err != nil {
			gw.hub.Send(connID, game.WrapErrResponse(err.Error()))
			continue
		}

		zap.L().Debug(
			"提交请求",
			zap.String("conn_id", connID),
			zap.String("request_type", wrapper.ReqType),
		)
	}
}

// writePump 是唯一写连接的协程，发送队列关闭或写入失败时退出
func (gw *Gateway) writePump(conn *websocket.Conn, c *client, clientIP string, doneCh chan struct{}) {
	ticker := time.NewTicker(gw.heartbeat.Interval)

	defer func() {
		ticker.Stop()
		// 让读循环尽快结束
		conn.Close()
		close(doneCh)
	}()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Error(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				return
			}

			zap.L().Debug(
				"发送心跳",
				zap.String("client_ip", clientIP),
			)

		case resp, ok := <-c.sendCh:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
				conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}

			conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))

			if err := conn.WriteJSON(resp); err != nil {
				zap.L().Error(
					"发送消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				return
			}

			zap.L().Debug(
				"发送消息",
				zap.String("conn_id", c.connID),
				zap.String("response_type", resp.RespType),
			)
		}
	}
}
