package service

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"conspiracy-be/internal/service/dto"
	"conspiracy-be/internal/service/game"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type sentResp struct {
	ConnID string
	Resp   game.ResponseWrapper
}

// fakeTransport 记录所有发出的消息，广播的 ConnID 为空
type fakeTransport struct {
	mu   sync.Mutex
	sent []sentResp

	notify chan sentResp
}

func (ft *fakeTransport) Send(connID string, resp game.ResponseWrapper) {
	ft.record(sentResp{ConnID: connID, Resp: resp})
}

func (ft *fakeTransport) Broadcast(resp game.ResponseWrapper) {
	ft.record(sentResp{Resp: resp})
}

func (ft *fakeTransport) record(s sentResp) {
	ft.mu.Lock()
	ft.sent = append(ft.sent, s)
	ft.mu.Unlock()

	if ft.notify != nil {
		ft.notify <- s
	}
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestService(t *testing.T, seed uint64) (*RoomService, *fakeTransport, *testClock) {
	t.Helper()

	undo := zap.ReplaceGlobals(zaptest.NewLogger(t))
	t.Cleanup(undo)

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	transport := &fakeTransport{}

	rs := NewRoomService(transport, Options{
		DefaultCapacity: 8,
		Settings:        dto.RoomSettings{DiscussionTime: 180, VoteTime: 60},
		EndedRoomTTL:    30 * time.Minute,
		SweepInterval:   time.Minute,
		Rand:            rand.New(rand.NewPCG(seed, seed+1)),
		Now:             clock.Now,
	})

	return rs, transport, clock
}

// connectNamed 注册 n 个已设置昵称的连接 c1..cn
func connectNamed(t *testing.T, rs *RoomService, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("c%d", i)
		rs.RegisterConnection(id)

		if _, err := rs.SetUsername(id, fmt.Sprintf("Player%d", i)); err != nil {
			t.Fatalf("set username for %s: %v", id, err)
		}

		ids = append(ids, id)
	}

	return ids
}

// roomWith 由 ids[0] 创建房间，其余连接依次加入
func roomWith(t *testing.T, rs *RoomService, ids []string) string {
	t.Helper()

	if _, err := rs.CreateRoom(ids[0], "test room", 0); err != nil {
		t.Fatalf("create room: %v", err)
	}

	sess, _ := rs.sessions.Get(ids[0])
	for _, id := range ids[1:] {
		if _, err := rs.JoinRoom(id, sess.RoomID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	return sess.RoomID
}

func findNotif(out []game.Notification, respType string) (game.Notification, bool) {
	for _, n := range out {
		if n.Resp.RespType == respType {
			return n, true
		}
	}

	return game.Notification{}, false
}

func countNotif(out []game.Notification, respType string) int {
	count := 0
	for _, n := range out {
		if n.Resp.RespType == respType {
			count++
		}
	}

	return count
}

func roleOf(t *testing.T, rs *RoomService, roomID, playerID string) string {
	t.Helper()

	room, ok := rs.rooms.Get(roomID)
	if !ok {
		t.Fatalf("room %s not found", roomID)
	}

	p, ok := room.Player(playerID)
	if !ok {
		t.Fatalf("player %s not in room", playerID)
	}

	return p.Role
}

// finishGame 在 4 人房间中淘汰唯一的阴谋者，使房间进入结束阶段
func finishGame(t *testing.T, rs *RoomService, roomID string, ids []string) {
	t.Helper()

	if _, err := rs.StartGame(ids[0]); err != nil {
		t.Fatalf("start game: %v", err)
	}

	if _, err := rs.StartVoting(ids[0]); err != nil {
		t.Fatalf("start voting: %v", err)
	}

	var target string
	for _, id := range ids {
		if roleOf(t, rs, roomID, id) == game.ROLE_CONSPIRATOR {
			target = id
		}
	}

	for _, id := range ids {
		if _, err := rs.CastVote(id, target); err != nil {
			t.Fatalf("vote by %s: %v", id, err)
		}
	}

	room, _ := rs.rooms.Get(roomID)
	if room.Phase() != game.PHASE_ENDED {
		t.Fatalf("want ended, got %s", room.Phase())
	}
}

func wrapRequest(t *testing.T, reqType string, data any) game.RequestWrapper {
	t.Helper()

	wrapper := game.RequestWrapper{ReqType: reqType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s payload: %v", reqType, err)
		}
		wrapper.Data = raw
	}

	return wrapper
}
