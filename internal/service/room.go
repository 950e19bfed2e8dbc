package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"conspiracy-be/internal/service/dto"
	"conspiracy-be/internal/service/game"

	"go.uber.org/zap"
)

var ErrBusy = errors.New("服务器繁忙，请稍后再试")

// Transport 是对外发送消息的最小接口，房间内多播由调用方展开成逐个单播
type Transport interface {
	Send(connID string, resp game.ResponseWrapper)
	Broadcast(resp game.ResponseWrapper)
}

type Options struct {
	DefaultCapacity int
	Settings        dto.RoomSettings
	// 结束后的房间保留多久，0 表示不清理
	EndedRoomTTL  time.Duration
	SweepInterval time.Duration
	RequestBuffer int

	Rand *rand.Rand
	Now  func() time.Time
}

// RoomService 持有会话表和房间目录，所有状态只在 Run 的事件循环中修改，
// 因此同一时刻只处理一个事件，计票、淘汰和胜负判定与触发它的投票不可分割
type RoomService struct {
	sessions  *SessionRegistry
	rooms     *RoomDirectory
	transport Transport

	opts Options
	rng  *rand.Rand
	now  func() time.Time

	reqCh chan RoomRequestAction
}

func NewRoomService(transport Transport, opts Options) *RoomService {
	if opts.DefaultCapacity <= 0 {
		opts.DefaultCapacity = 8
	}

	if opts.RequestBuffer <= 0 {
		opts.RequestBuffer = 256
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &RoomService{
		sessions:  NewSessionRegistry(),
		rooms:     NewRoomDirectory(rng),
		transport: transport,
		opts:      opts,
		rng:       rng,
		now:       now,
		reqCh:     make(chan RoomRequestAction, opts.RequestBuffer),
	}
}

// Run 是单线程事件循环，直到 ctx 结束才返回
func (rs *RoomService) Run(ctx context.Context) {
	var sweepC <-chan time.Time
	if rs.opts.EndedRoomTTL > 0 && rs.opts.SweepInterval > 0 {
		ticker := time.NewTicker(rs.opts.SweepInterval)
		defer ticker.Stop()

		sweepC = ticker.C
	}

	zap.L().Info("房间服务启动")

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("房间服务退出", zap.Int("rooms", rs.rooms.Count()))
			return

		case req := <-rs.reqCh:
			rs.process(req)

		case <-sweepC:
			rs.process(RoomRequestAction{
				Kind:  REQ_KIND_QUERY,
				Query: func() { rs.deliver(rs.SweepEndedRooms()) },
			})
		}
	}
}

func (rs *RoomService) process(req RoomRequestAction) {
	defer func() {
		if r := recover(); r != nil {
			// 丢弃该事件的所有输出，其他房间不受影响
			zap.L().Error(
				"处理请求时发生异常",
				zap.String("kind", req.Kind),
				zap.String("conn_id", req.ConnID),
				zap.String("request_type", req.Wrapper.ReqType),
				zap.Any("panic", r),
			)
		}
	}()

	switch req.Kind {
	case REQ_KIND_CONNECT:
		rs.RegisterConnection(req.ConnID)

	case REQ_KIND_DISCONNECT:
		rs.deliver(rs.RemoveConnection(req.ConnID))

	case REQ_KIND_QUERY:
		if req.DoneCh != nil {
			defer close(req.DoneCh)
		}
		req.Query()

	case REQ_KIND_EVENT:
		out, err := rs.Handle(req.ConnID, req.Wrapper)
		if err != nil {
			zap.L().Debug(
				"请求被拒绝",
				zap.String("conn_id", req.ConnID),
				zap.String("request_type", req.Wrapper.ReqType),
				zap.Error(err),
			)

			// 失败前已经产生的通知（例如离开旧房间）仍然发送
			out = append(out, game.Unicast(req.ConnID, game.WrapErrResponse(err.Error())))
		}

		rs.deliver(out)
	}
}

func (rs *RoomService) deliver(out []game.Notification) {
	for _, n := range out {
		if n.Scope == game.SCOPE_BROADCAST {
			rs.transport.Broadcast(n.Resp)
			continue
		}

		for _, connID := range n.Recipients {
			rs.transport.Send(connID, n.Resp)
		}
	}
}

// Submit 把客户端请求放入事件循环，队列已满时立即返回 ErrBusy
func (rs *RoomService) Submit(connID string, wrapper game.RequestWrapper) error {
	select {
	case rs.reqCh <- RoomRequestAction{Kind: REQ_KIND_EVENT, ConnID: connID, Wrapper: wrapper}:
		return nil
	default:
		zap.L().Warn(
			"请求队列已满",
			zap.String("conn_id", connID),
			zap.String("request_type", wrapper.ReqType),
		)
		return ErrBusy
	}
}

// 连接的建立和断开不能丢，阻塞直到被接收
func (rs *RoomService) Connect(ctx context.Context, connID string) error {
	return rs.enqueue(ctx, RoomRequestAction{Kind: REQ_KIND_CONNECT, ConnID: connID})
}

func (rs *RoomService) Disconnect(ctx context.Context, connID string) error {
	return rs.enqueue(ctx, RoomRequestAction{Kind: REQ_KIND_DISCONNECT, ConnID: connID})
}

func (rs *RoomService) enqueue(ctx context.Context, req RoomRequestAction) error {
	select {
	case rs.reqCh <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inspect 在事件循环中执行只读查询并等待其完成
func (rs *RoomService) inspect(ctx context.Context, query func()) error {
	doneCh := make(chan struct{})

	if err := rs.enqueue(ctx, RoomRequestAction{
		Kind:   REQ_KIND_QUERY,
		Query:  query,
		DoneCh: doneCh,
	}); err != nil {
		return err
	}

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// 供 HTTP 接口使用的等待中房间列表
func (rs *RoomService) WaitingRooms(ctx context.Context) ([]dto.RoomSummary, error) {
	var rooms []dto.RoomSummary

	err := rs.inspect(ctx, func() {
		rooms = rs.ListWaitingRooms()
	})

	return rooms, err
}

func (rs *RoomService) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var exists bool

	err := rs.inspect(ctx, func() {
		_, exists = rs.rooms.Get(roomID)
	})

	return exists, err
}

// Handle 解析一条客户端请求并执行对应操作。以下所有方法都必须在事件循环中调用
func (rs *RoomService) Handle(connID string, wrapper game.RequestWrapper) ([]game.Notification, error) {
	invalid := game.Errorf(game.ErrValidation, "请求格式无效")

	switch wrapper.ReqType {
	case game.REQ_SET_USERNAME:
		req := game.TryUnwrap[dto.SetUsernameRequest](wrapper, game.REQ_SET_USERNAME)
		if req == nil {
			return nil, invalid
		}
		return rs.SetUsername(connID, req.Name)

	case game.REQ_CREATE_ROOM:
		req := game.TryUnwrap[dto.CreateRoomRequest](wrapper, game.REQ_CREATE_ROOM)
		if req == nil {
			return nil, invalid
		}
		return rs.CreateRoom(connID, req.RoomName, int(req.MaxPlayers))

	case game.REQ_JOIN_ROOM:
		req := game.TryUnwrap[dto.JoinRoomRequest](wrapper, game.REQ_JOIN_ROOM)
		if req == nil {
			return nil, invalid
		}
		return rs.JoinRoom(connID, req.RoomID)

	case game.REQ_LEAVE_ROOM:
		return rs.LeaveRoom(connID)

	case game.REQ_START_GAME:
		return rs.StartGame(connID)

	case game.REQ_SEND_MESSAGE:
		req := game.TryUnwrap[game.SendMessageRequest](wrapper, game.REQ_SEND_MESSAGE)
		if req == nil {
			return nil, invalid
		}
		return rs.SendMessage(connID, req.Message)

	case game.REQ_START_VOTING:
		return rs.StartVoting(connID)

	case game.REQ_VOTE:
		req := game.TryUnwrap[game.VoteRequest](wrapper, game.REQ_VOTE)
		if req == nil {
			return nil, invalid
		}
		return rs.CastVote(connID, req.TargetID)

	case game.REQ_GET_ROOM_LIST:
		return rs.GetRoomList(connID), nil
	}

	return nil, game.Errorf(game.ErrValidation, "未知的请求类型: %s", wrapper.ReqType)
}

func (rs *RoomService) RegisterConnection(connID string) {
	rs.sessions.Register(connID)
}

// RemoveConnection 先执行离开房间的流程，再丢弃会话
func (rs *RoomService) RemoveConnection(connID string) []game.Notification {
	sess, ok := rs.sessions.Get(connID)

	out := rs.leaveRoom(connID, false)
	rs.sessions.Remove(connID)

	if ok && sess.RoomID != "" {
		out = append(out, rs.roomListUpdated())
	}

	zap.L().Debug("连接已移除", zap.String("conn_id", connID))

	return out
}

func (rs *RoomService) SetUsername(connID, name string) ([]game.Notification, error) {
	trimmed, err := rs.sessions.SetDisplayName(connID, name)
	if err != nil {
		return nil, err
	}

	return []game.Notification{
		game.Unicast(connID, game.WrapResponse(
			game.RESP_USERNAME_SET,
			dto.UsernameSetResponse{Username: trimmed},
		)),
	}, nil
}

func (rs *RoomService) CreateRoom(connID, roomName string, capacity int) ([]game.Notification, error) {
	sess, ok := rs.sessions.Get(connID)
	if !ok || sess.Name == "" {
		return nil, game.Errorf(game.ErrNotReady, "请先设置昵称")
	}

	name, err := validateName(roomName, "房间名")
	if err != nil {
		return nil, err
	}

	if capacity <= 0 {
		capacity = rs.opts.DefaultCapacity
	}

	// 已经在其他房间时先离开
	out := rs.leaveRoom(connID, true)

	room, err := rs.rooms.Create(name, capacity, game.NewPlayer(connID, sess.Name), rs.roomOptions())
	if err != nil {
		zap.L().Error("创建房间失败", zap.String("conn_id", connID), zap.Error(err))
		if len(out) > 0 {
			out = append(out, rs.roomListUpdated())
		}
		return out, err
	}

	rs.sessions.SetRoom(connID, room.ID())

	zap.S().Infof("房间 %s(%s) 由 %s 创建，容量 %d", room.ID(), name, sess.Name, capacity)

	out = append(out,
		game.Unicast(connID, game.WrapResponse(
			game.RESP_ROOM_CREATED,
			dto.RoomCreatedResponse{
				RoomID: room.ID(),
				Room:   room.Snapshot(),
			},
		)),
		rs.roomListUpdated(),
	)

	return out, nil
}

func (rs *RoomService) JoinRoom(connID, roomID string) ([]game.Notification, error) {
	sess, ok := rs.sessions.Get(connID)
	if !ok || sess.Name == "" {
		return nil, game.Errorf(game.ErrNotReady, "请先设置昵称")
	}

	room, ok := rs.rooms.Get(roomID)
	if !ok {
		return nil, game.Errorf(game.ErrNotFound, "找不到房间")
	}

	// 先确认能加入，失败时不能影响原来的房间
	if err := room.CanJoin(connID); err != nil {
		return nil, err
	}

	out := rs.leaveRoom(connID, true)

	joinOut, err := room.Join(game.NewPlayer(connID, sess.Name))
	if err != nil {
		if len(out) > 0 {
			out = append(out, rs.roomListUpdated())
		}
		return out, err
	}

	rs.sessions.SetRoom(connID, room.ID())

	out = append(out, joinOut...)
	out = append(out, rs.roomListUpdated())

	return out, nil
}

func (rs *RoomService) LeaveRoom(connID string) ([]game.Notification, error) {
	out := rs.leaveRoom(connID, true)
	if len(out) == 0 {
		return nil, nil
	}

	return append(out, rs.roomListUpdated()), nil
}

// leaveRoom 不在房间中时什么都不做。confirm 为 true 时向离开者确认。
// 房间列表的更新由调用方统一追加
func (rs *RoomService) leaveRoom(connID string, confirm bool) []game.Notification {
	sess, ok := rs.sessions.Get(connID)
	if !ok || sess.RoomID == "" {
		return nil
	}

	rs.sessions.SetRoom(connID, "")

	var out []game.Notification

	if room, exists := rs.rooms.Get(sess.RoomID); exists {
		leaveOut, empty := room.Leave(connID)
		if empty {
			rs.rooms.Delete(room.ID())
			zap.S().Infof("房间 %s 已无成员，删除", room.ID())
		}

		out = append(out, leaveOut...)
	}

	zap.L().Info(
		"玩家离开房间",
		zap.String("conn_id", connID),
		zap.String("room_id", sess.RoomID),
	)

	if confirm {
		out = append(out, game.Unicast(connID, game.WrapResponse(
			game.RESP_ROOM_LEFT,
			dto.RoomLeftResponse{RoomID: sess.RoomID},
		)))
	}

	return out
}

func (rs *RoomService) StartGame(connID string) ([]game.Notification, error) {
	room, err := rs.callerRoom(connID)
	if err != nil {
		return nil, err
	}

	out, err := room.StartGame(connID)
	if err != nil {
		return nil, err
	}

	// 房间离开了等待列表
	return append(out, rs.roomListUpdated()), nil
}

func (rs *RoomService) SendMessage(connID, text string) ([]game.Notification, error) {
	room, err := rs.callerRoom(connID)
	if err != nil {
		return nil, err
	}

	return room.SendMessage(connID, text)
}

func (rs *RoomService) StartVoting(connID string) ([]game.Notification, error) {
	room, err := rs.callerRoom(connID)
	if err != nil {
		return nil, err
	}

	return room.StartVoting(connID)
}

func (rs *RoomService) CastVote(connID, targetID string) ([]game.Notification, error) {
	room, err := rs.callerRoom(connID)
	if err != nil {
		return nil, err
	}

	return room.CastVote(connID, strings.TrimSpace(targetID))
}

func (rs *RoomService) GetRoomList(connID string) []game.Notification {
	return []game.Notification{
		game.Unicast(connID, game.WrapResponse(game.RESP_ROOM_LIST, rs.ListWaitingRooms())),
	}
}

func (rs *RoomService) ListWaitingRooms() []dto.RoomSummary {
	return rs.rooms.ListWaiting()
}

// SweepEndedRooms 关闭结束超过 EndedRoomTTL 的房间，剩余成员按正常离开处理
func (rs *RoomService) SweepEndedRooms() []game.Notification {
	var out []game.Notification
	swept := 0

	now := rs.now()
	for _, room := range rs.rooms.All() {
		if !isRoomExpired(room, now, rs.opts.EndedRoomTTL) {
			continue
		}

		zap.S().Infof("房间 %s 已结束超过 %s，开始清理", room.ID(), rs.opts.EndedRoomTTL)

		for _, p := range room.Players() {
			out = append(out, rs.leaveRoom(p.ID, true)...)
		}

		// 成员会话可能已经指向别处，房间仍需删除
		rs.rooms.Delete(room.ID())
		swept++
	}

	if swept > 0 {
		out = append(out, rs.roomListUpdated())
	}

	return out
}

// 调用者所在的房间
func (rs *RoomService) callerRoom(connID string) (*game.Room, error) {
	sess, ok := rs.sessions.Get(connID)
	if !ok || sess.RoomID == "" {
		return nil, game.Errorf(game.ErrAuthorization, "你不在任何房间中")
	}

	room, ok := rs.rooms.Get(sess.RoomID)
	if !ok || !room.IsMember(connID) {
		return nil, game.Errorf(game.ErrAuthorization, "你不在任何房间中")
	}

	return room, nil
}

func (rs *RoomService) roomListUpdated() game.Notification {
	return game.Broadcast(game.WrapResponse(game.RESP_ROOM_LIST_UPDATED, rs.ListWaitingRooms()))
}

func (rs *RoomService) roomOptions() game.RoomOptions {
	return game.RoomOptions{
		Settings: rs.opts.Settings,
		Rand:     rand.New(rand.NewPCG(rs.rng.Uint64(), rs.rng.Uint64())),
		Now:      rs.now,
	}
}
