package game

import (
	"math/rand/v2"
	"slices"
	"time"

	"conspiracy-be/internal/service/dto"

	"go.uber.org/zap"
)

// 通知的投递范围
const (
	SCOPE_UNICAST   = "unicast"
	SCOPE_ROOM      = "room"
	SCOPE_BROADCAST = "broadcast"
)

// Notification 是状态变更产生的待投递消息，由调度层交给传输层发送。
// SCOPE_BROADCAST 时 Recipients 为空，表示所有连接
type Notification struct {
	Scope      string
	Recipients []string
	Resp       ResponseWrapper
}

func Unicast(connID string, resp ResponseWrapper) Notification {
	return Notification{
		Scope:      SCOPE_UNICAST,
		Recipients: []string{connID},
		Resp:       resp,
	}
}

func Broadcast(resp ResponseWrapper) Notification {
	return Notification{
		Scope: SCOPE_BROADCAST,
		Resp:  resp,
	}
}

// GameContext 保存一个房间的成员与游戏状态，所有阶段处理器共享
type GameContext struct {
	RoomID   string
	RoomName string
	HostID   string
	Capacity int
	Settings dto.RoomSettings

	// 按加入顺序排列，房主继任时取第一个
	Players []*Player

	Phase string
	Day   int
	// key: 投票者 ID，value: 被投票者 ID，只在投票阶段非空
	Votes map[string]string

	Winner  string
	EndedAt time.Time

	Rand *rand.Rand
	Now  func() time.Time

	outbox []Notification
}

func (gc *GameContext) GetPlayer(playerID string) *Player {
	for _, p := range gc.Players {
		if p.ID == playerID {
			return p
		}
	}

	return nil
}

func (gc *GameContext) GetHost() *Player {
	return gc.GetPlayer(gc.HostID)
}

func (gc *GameContext) IsHost(playerID string) bool {
	return gc.HostID != "" && gc.HostID == playerID
}

func (gc *GameContext) GetAlivePlayers() []*Player {
	alive := make([]*Player, 0, len(gc.Players))
	for _, p := range gc.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}

	return alive
}

func (gc *GameContext) CountAlive() int {
	return len(gc.GetAlivePlayers())
}

func (gc *GameContext) CountAliveRole(role string) int {
	count := 0
	for _, p := range gc.Players {
		if p.Alive && p.Role == role {
			count++
		}
	}

	return count
}

func (gc *GameContext) PublicPlayers() []dto.PublicPlayer {
	players := make([]dto.PublicPlayer, 0, len(gc.Players))
	for _, p := range gc.Players {
		players = append(players, p.Public())
	}

	return players
}

func (gc *GameContext) playerIDs() []string {
	ids := make([]string, 0, len(gc.Players))
	for _, p := range gc.Players {
		ids = append(ids, p.ID)
	}

	return ids
}

// 发给房间内的所有成员
func (gc *GameContext) BroadcastResp(resp ResponseWrapper) {
	gc.outbox = append(gc.outbox, Notification{
		Scope:      SCOPE_ROOM,
		Recipients: gc.playerIDs(),
		Resp:       resp,
	})
}

// 发给除 excludeID 以外的房间成员
func (gc *GameContext) BroadcastExcept(excludeID string, resp ResponseWrapper) {
	recipients := slices.DeleteFunc(gc.playerIDs(), func(id string) bool {
		return id == excludeID
	})

	if len(recipients) == 0 {
		return
	}

	gc.outbox = append(gc.outbox, Notification{
		Scope:      SCOPE_ROOM,
		Recipients: recipients,
		Resp:       resp,
	})
}

func (gc *GameContext) UnicastResp(playerID string, resp ResponseWrapper) {
	if gc.GetPlayer(playerID) == nil {
		zap.L().Warn(
			"无法找到玩家进行单播响应",
			zap.String("room_id", gc.RoomID),
			zap.String("player_id", playerID),
		)
		return
	}

	gc.outbox = append(gc.outbox, Unicast(playerID, resp))
}

// 取出并清空待发送的通知
func (gc *GameContext) Drain() []Notification {
	out := gc.outbox
	gc.outbox = nil

	return out
}

func (gc *GameContext) now() time.Time {
	if gc.Now == nil {
		return time.Now()
	}

	return gc.Now()
}
