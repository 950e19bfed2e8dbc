package websocket

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"conspiracy-be/internal/service"
	"conspiracy-be/internal/service/dto"
	"conspiracy-be/internal/service/game"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type wireResponse struct {
	RespType string          `json:"response_type"`
	Data     json.RawMessage `json:"data"`
	ErrMsg   string          `json:"error_message"`
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()

	undo := zap.ReplaceGlobals(zaptest.NewLogger(t))

	hub := NewHub()
	roomSvc := service.NewRoomService(hub, service.Options{
		DefaultCapacity: 8,
		Rand:            rand.New(rand.NewPCG(1, 2)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		roomSvc.Run(ctx)
		close(done)
	}()

	gw := NewGateway(ctx, roomSvc, hub, HeartbeatConfig{Interval: time.Second, Timeout: 2 * time.Second})
	srv := httptest.NewServer(http.HandlerFunc(gw.ServeConn))

	t.Cleanup(func() {
		srv.Close()
		gw.Wait()
		cancel()
		<-done
		undo()
	})

	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, reqType string, data any) {
	t.Helper()

	wrapper := game.RequestWrapper{ReqType: reqType}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		wrapper.Data = raw
	}

	require.NoError(t, conn.WriteJSON(wrapper))
}

// expect 读取消息直到遇到 respType，跳过其他广播
func expect(t *testing.T, conn *websocket.Conn, respType string) wireResponse {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	for {
		var resp wireResponse
		require.NoError(t, conn.ReadJSON(&resp), "waiting for %s", respType)

		if resp.RespType == respType {
			return resp
		}
	}
}

func TestGateway_EndToEnd(t *testing.T) {
	srv, hub := newTestServer(t)

	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, game.REQ_SET_USERNAME, dto.SetUsernameRequest{Name: "Alice"})
	resp := expect(t, alice, game.RESP_USERNAME_SET)

	var named dto.UsernameSetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &named))
	assert.Equal(t, "Alice", named.Username)

	send(t, alice, game.REQ_CREATE_ROOM, dto.CreateRoomRequest{RoomName: "lobby", MaxPlayers: 5})
	resp = expect(t, alice, game.RESP_ROOM_CREATED)

	var created dto.RoomCreatedResponse
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, 5, created.Room.Capacity)

	// 其他连接收到房间列表更新
	resp = expect(t, bob, game.RESP_ROOM_LIST_UPDATED)

	var rooms []dto.RoomSummary
	require.NoError(t, json.Unmarshal(resp.Data, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, created.RoomID, rooms[0].ID)

	// 未设置昵称不能加入
	send(t, bob, game.REQ_JOIN_ROOM, dto.JoinRoomRequest{RoomID: created.RoomID})
	assert.NotEmpty(t, expect(t, bob, game.RESP_ERROR).ErrMsg)

	send(t, bob, game.REQ_SET_USERNAME, dto.SetUsernameRequest{Name: "Bob"})
	expect(t, bob, game.RESP_USERNAME_SET)

	send(t, bob, game.REQ_JOIN_ROOM, dto.JoinRoomRequest{RoomID: strings.ToLower(created.RoomID)})
	expect(t, bob, game.RESP_ROOM_JOINED)
	expect(t, alice, game.RESP_PLAYER_JOINED)

	// 房主断开后由 Bob 继任
	alice.Close()

	resp = expect(t, bob, game.RESP_HOST_CHANGED)

	var changed dto.HostChangedResponse
	require.NoError(t, json.Unmarshal(resp.Data, &changed))
	assert.Equal(t, "Bob", changed.HostName)

	assert.Eventually(t, func() bool {
		return hub.Count() == 1
	}, 3*time.Second, 10*time.Millisecond, "closed connection should be unregistered")
}

func TestGateway_MalformedMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.NotEmpty(t, expect(t, conn, game.RESP_ERROR).ErrMsg)

	send(t, conn, "dance", nil)
	expect(t, conn, game.RESP_ERROR)

	// 连接仍然可用
	send(t, conn, game.REQ_GET_ROOM_LIST, nil)
	expect(t, conn, game.RESP_ROOM_LIST)
}

func TestGateway_DisconnectWaitsForBusyQueue(t *testing.T) {
	undo := zap.ReplaceGlobals(zaptest.NewLogger(t))

	hub := NewHub()
	roomSvc := service.NewRoomService(hub, service.Options{
		DefaultCapacity: 8,
		RequestBuffer:   1,
		Rand:            rand.New(rand.NewPCG(5, 6)),
	})

	svcCtx, stopSvc := context.WithCancel(context.Background())

	var runs sync.WaitGroup
	runLoop := func(ctx context.Context) {
		runs.Add(1)
		go func() {
			defer runs.Done()
			roomSvc.Run(ctx)
		}()
	}

	loopCtx, pauseLoop := context.WithCancel(svcCtx)
	runLoop(loopCtx)

	gw := NewGateway(svcCtx, roomSvc, hub, HeartbeatConfig{Interval: time.Second, Timeout: 2 * time.Second})
	srv := httptest.NewServer(http.HandlerFunc(gw.ServeConn))

	t.Cleanup(func() {
		srv.Close()
		stopSvc()
		gw.Wait()
		runs.Wait()
		undo()
	})

	conn := dial(t, srv)

	send(t, conn, game.REQ_SET_USERNAME, dto.SetUsernameRequest{Name: "Alice"})
	expect(t, conn, game.RESP_USERNAME_SET)

	send(t, conn, game.REQ_CREATE_ROOM, dto.CreateRoomRequest{RoomName: "lobby"})
	resp := expect(t, conn, game.RESP_ROOM_CREATED)

	var created dto.RoomCreatedResponse
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	// 暂停事件循环并占满队列
	pauseLoop()
	runs.Wait()

	filler := game.RequestWrapper{ReqType: game.REQ_GET_ROOM_LIST}
	require.NoError(t, roomSvc.Submit("filler", filler))
	require.ErrorIs(t, roomSvc.Submit("filler", filler), service.ErrBusy)

	conn.Close()

	// 断开事件在等待队列空位，连接尚未注销
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, hub.Count())

	runLoop(svcCtx)

	assert.Eventually(t, func() bool {
		return hub.Count() == 0
	}, 3*time.Second, 10*time.Millisecond, "connection should be unregistered once the disconnect is accepted")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	exists, err := roomSvc.RoomExists(ctx, created.RoomID)
	require.NoError(t, err)
	assert.False(t, exists, "the only member left, so the room should be deleted")
}
