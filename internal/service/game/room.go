package game

import (
	"maps"
	"math/rand/v2"
	"time"

	"conspiracy-be/internal/service/dto"

	"go.uber.org/zap"
)

type RoomOptions struct {
	Settings dto.RoomSettings
	// 为 nil 时使用随机种子，测试中注入固定种子
	Rand *rand.Rand
	Now  func() time.Time
}

// Room 持有成员、房主、容量以及内嵌的游戏状态机。
// 不加锁，由调用方保证串行访问
type Room struct {
	ctx     *GameContext
	machine *GameMachine

	createdAt time.Time
}

// NewRoom 以 host 作为唯一成员和房主创建房间
func NewRoom(id, name string, capacity int, host *Player, opts RoomOptions) *Room {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	ctx := &GameContext{
		RoomID:   id,
		RoomName: name,
		HostID:   host.ID,
		Capacity: capacity,
		Settings: opts.Settings,
		Players:  []*Player{host},
		Rand:     rng,
		Now:      opts.Now,
	}

	return &Room{
		ctx:       ctx,
		machine:   NewGameMachine(ctx),
		createdAt: ctx.now(),
	}
}

func (r *Room) ID() string {
	return r.ctx.RoomID
}

func (r *Room) Name() string {
	return r.ctx.RoomName
}

func (r *Room) HostID() string {
	return r.ctx.HostID
}

func (r *Room) Capacity() int {
	return r.ctx.Capacity
}

func (r *Room) Phase() string {
	return r.machine.Phase()
}

// 游戏是否已经结束
func (r *Room) IsFinished() bool {
	return r.machine.IsFinished()
}

func (r *Room) Day() int {
	return r.ctx.Day
}

func (r *Room) Winner() string {
	return r.ctx.Winner
}

func (r *Room) MemberCount() int {
	return len(r.ctx.Players)
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// 游戏结束的时间，未结束时为零值
func (r *Room) EndedAt() time.Time {
	return r.ctx.EndedAt
}

func (r *Room) IsMember(playerID string) bool {
	return r.ctx.GetPlayer(playerID) != nil
}

// 返回玩家的副本，不存在时 ok 为 false
func (r *Room) Player(playerID string) (Player, bool) {
	p := r.ctx.GetPlayer(playerID)
	if p == nil {
		return Player{}, false
	}

	return *p, true
}

// 按加入顺序返回所有玩家的副本
func (r *Room) Players() []Player {
	players := make([]Player, 0, len(r.ctx.Players))
	for _, p := range r.ctx.Players {
		players = append(players, *p)
	}

	return players
}

// 当前投票记录的副本
func (r *Room) Votes() map[string]string {
	return maps.Clone(r.ctx.Votes)
}

func (r *Room) PublicPlayers() []dto.PublicPlayer {
	return r.ctx.PublicPlayers()
}

func (r *Room) Snapshot() dto.RoomSnapshot {
	snapshot := dto.RoomSnapshot{
		ID:       r.ctx.RoomID,
		Name:     r.ctx.RoomName,
		HostID:   r.ctx.HostID,
		Capacity: r.ctx.Capacity,
		Phase:    r.Phase(),
		Day:      r.ctx.Day,
		Settings: r.ctx.Settings,
		Players:  r.ctx.PublicPlayers(),
	}

	if host := r.ctx.GetHost(); host != nil {
		snapshot.HostName = host.Name
	}

	return snapshot
}

func (r *Room) Summary() dto.RoomSummary {
	summary := dto.RoomSummary{
		ID:          r.ctx.RoomID,
		Name:        r.ctx.RoomName,
		MemberCount: len(r.ctx.Players),
		Capacity:    r.ctx.Capacity,
	}

	if host := r.ctx.GetHost(); host != nil {
		summary.HostName = host.Name
	}

	return summary
}

// CanJoin 检查玩家现在能否加入，不修改任何状态
func (r *Room) CanJoin(playerID string) error {
	if r.IsMember(playerID) {
		return Errorf(ErrInvalidState, "你已经在这个房间里")
	}

	if r.Phase() != PHASE_WAITING {
		return Errorf(ErrInvalidState, "游戏已经开始，无法加入")
	}

	if len(r.ctx.Players) >= r.ctx.Capacity {
		return Errorf(ErrCapacity, "房间已满")
	}

	return nil
}

// Join 把玩家加入等待中的房间，通知加入者完整房间状态，并通知其他成员
func (r *Room) Join(player *Player) ([]Notification, error) {
	defer r.discardOnPanic()

	if err := r.CanJoin(player.ID); err != nil {
		return nil, err
	}

	r.ctx.Players = append(r.ctx.Players, player)

	r.ctx.UnicastResp(player.ID, WrapResponse(
		RESP_ROOM_JOINED,
		dto.RoomJoinedResponse{Room: r.Snapshot()},
	))

	r.ctx.BroadcastExcept(player.ID, WrapResponse(
		RESP_PLAYER_JOINED,
		dto.PlayerJoinedResponse{
			Player:  player.Public(),
			Players: r.ctx.PublicPlayers(),
		},
	))

	zap.L().Info(
		"玩家加入房间",
		zap.String("room_id", r.ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
		zap.Int("members", len(r.ctx.Players)),
	)

	return r.ctx.Drain(), nil
}

// Leave 移除成员。房间变空时 empty 为 true，调用方应立即删除房间；
// 否则离开的是房主时由最早加入的成员继任。已投出的票保持不变
func (r *Room) Leave(playerID string) (out []Notification, empty bool) {
	defer r.discardOnPanic()

	idx := -1
	for i, p := range r.ctx.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}

	if idx < 0 {
		return nil, len(r.ctx.Players) == 0
	}

	r.ctx.Players = append(r.ctx.Players[:idx], r.ctx.Players[idx+1:]...)

	if len(r.ctx.Players) == 0 {
		r.ctx.HostID = ""
		r.ctx.Drain()
		return nil, true
	}

	if r.ctx.HostID == playerID {
		newHost := r.ctx.Players[0]
		r.ctx.HostID = newHost.ID

		r.ctx.BroadcastResp(WrapResponse(
			RESP_HOST_CHANGED,
			dto.HostChangedResponse{
				HostID:   newHost.ID,
				HostName: newHost.Name,
			},
		))

		zap.L().Info(
			"房主变更",
			zap.String("room_id", r.ctx.RoomID),
			zap.String("old_host_id", playerID),
			zap.String("new_host_id", newHost.ID),
		)
	}

	r.ctx.BroadcastResp(WrapResponse(
		RESP_PLAYER_LEFT,
		dto.PlayerLeftResponse{
			PlayerID: playerID,
			Players:  r.ctx.PublicPlayers(),
		},
	))

	return r.ctx.Drain(), false
}

// discardOnPanic 在操作中途 panic 时清空未发送的通知，再把 panic 继续抛给调用方
func (r *Room) discardOnPanic() {
	if rec := recover(); rec != nil {
		r.ctx.Drain()
		panic(rec)
	}
}

// Dispatch 把操作交给状态机，失败时丢弃所有未发送的通知
func (r *Room) Dispatch(action Action) ([]Notification, error) {
	defer r.discardOnPanic()

	if err := r.machine.Handle(action); err != nil {
		r.ctx.Drain()
		return nil, err
	}

	return r.ctx.Drain(), nil
}

func (r *Room) StartGame(callerID string) ([]Notification, error) {
	return r.Dispatch(Action{Type: REQ_START_GAME, CallerID: callerID})
}

func (r *Room) StartVoting(callerID string) ([]Notification, error) {
	return r.Dispatch(Action{Type: REQ_START_VOTING, CallerID: callerID})
}

func (r *Room) SendMessage(callerID, text string) ([]Notification, error) {
	return r.Dispatch(Action{Type: REQ_SEND_MESSAGE, CallerID: callerID, Message: text})
}

func (r *Room) CastVote(callerID, targetID string) ([]Notification, error) {
	return r.Dispatch(Action{Type: REQ_VOTE, CallerID: callerID, TargetID: targetID})
}
