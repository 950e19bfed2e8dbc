package game

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"conspiracy-be/internal/service/dto"

	"go.uber.org/zap"
)

// 游戏总体分为 4 个阶段，分别是：
// 1. 等待阶段（waiting）：玩家可以加入房间，等待房主开始游戏
// 2. 讨论阶段（discussion）：存活玩家自由发言，房主决定何时开始投票
// 3. 投票阶段（voting）：所有存活玩家投票后立即计票、淘汰并判定胜负
// 4. 结束阶段（ended）：公布所有身份，之后不再有任何状态变化
const (
	PHASE_WAITING    = "waiting"
	PHASE_DISCUSSION = "discussion"
	PHASE_VOTING     = "voting"
	PHASE_ENDED      = "ended"
)

const (
	MIN_PLAYERS     = 4
	MAX_MESSAGE_LEN = 500
)

type StageHandler interface {
	Stage() string

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, action Action) error
	OnExit(ctx *GameContext)

	SetOnSwitch(func(nextPhase string))
}

// 等待阶段是整个游戏最初始的阶段
type waitStageHandler struct {
	onSwitch func(string)
}

func NewWaitStageHandler() *waitStageHandler {
	return &waitStageHandler{}
}

func (wsh *waitStageHandler) Stage() string {
	return PHASE_WAITING
}

func (wsh *waitStageHandler) OnEnter(ctx *GameContext) {
	ctx.Day = 1
	ctx.Votes = make(map[string]string)
	ctx.Winner = ""
}

func (wsh *waitStageHandler) OnHandle(ctx *GameContext, action Action) error {
	switch action.Type {
	case REQ_START_GAME:
		if !ctx.IsHost(action.CallerID) {
			return Errorf(ErrAuthorization, "只有房主可以开始游戏")
		}

		if len(ctx.Players) < MIN_PLAYERS {
			return Errorf(ErrPrecondition, "至少需要 %d 名玩家才能开始游戏", MIN_PLAYERS)
		}

		conspirators := assignRoles(ctx)

		// 身份只单播给本人
		for _, p := range ctx.Players {
			ctx.UnicastResp(p.ID, WrapResponse(
				RESP_ROLE_ASSIGNED,
				RoleAssignedResponse{Role: p.Role},
			))
		}

		zap.L().Info(
			"游戏开始，身份已分配",
			zap.String("room_id", ctx.RoomID),
			zap.Int("players", len(ctx.Players)),
			zap.Int("conspirators", conspirators),
		)

		wsh.onSwitch(PHASE_DISCUSSION)

		return nil

	case REQ_SEND_MESSAGE:
		return onChat(ctx, action)

	case REQ_START_VOTING:
		return rejectHostAction(ctx, action.CallerID, "只有房主可以开始投票", "游戏尚未开始")

	case REQ_VOTE:
		return Errorf(ErrInvalidState, "现在不是投票时间")
	}

	return Errorf(ErrInvalidState, "当前阶段不支持该请求")
}

// 随机抽取 max(1, n/3) 名阴谋者，其余为船员，返回阴谋者人数
func assignRoles(ctx *GameContext) int {
	conspirators := max(1, len(ctx.Players)/3)

	shuffled := slices.Clone(ctx.Players)
	ctx.Rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i, p := range shuffled {
		if i < conspirators {
			p.Role = ROLE_CONSPIRATOR
		} else {
			p.Role = ROLE_CREW
		}

		p.Alive = true
		p.Votes = 0
	}

	ctx.Day = 1
	ctx.Votes = make(map[string]string)
	ctx.Winner = ""

	return conspirators
}

func (wsh *waitStageHandler) OnExit(ctx *GameContext) {
}

func (wsh *waitStageHandler) SetOnSwitch(onSwitch func(string)) {
	wsh.onSwitch = onSwitch
}

// 讨论阶段处理器
type discussStageHandler struct {
	onSwitch func(string)
}

func NewDiscussStageHandler() *discussStageHandler {
	return &discussStageHandler{}
}

func (dsh *discussStageHandler) Stage() string {
	return PHASE_DISCUSSION
}

func (dsh *discussStageHandler) OnEnter(ctx *GameContext) {
	ctx.Votes = make(map[string]string)

	// 第一天即游戏开始，广播公开的玩家列表（不含身份）
	if ctx.Day == 1 {
		ctx.BroadcastResp(WrapResponse(
			RESP_GAME_STARTED,
			GameStartedResponse{
				Day:     ctx.Day,
				Phase:   PHASE_DISCUSSION,
				Players: ctx.PublicPlayers(),
			},
		))
		return
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_NEXT_DAY,
		NextDayResponse{
			Day:   ctx.Day,
			Phase: PHASE_DISCUSSION,
		},
	))
}

func (dsh *discussStageHandler) OnHandle(ctx *GameContext, action Action) error {
	switch action.Type {
	case REQ_START_VOTING:
		if !ctx.IsHost(action.CallerID) {
			return Errorf(ErrAuthorization, "只有房主可以开始投票")
		}

		dsh.onSwitch(PHASE_VOTING)

		return nil

	case REQ_SEND_MESSAGE:
		return onChat(ctx, action)

	case REQ_START_GAME:
		return rejectStartGame(ctx, action.CallerID, "游戏已经开始")

	case REQ_VOTE:
		return Errorf(ErrInvalidState, "现在不是投票时间")
	}

	return Errorf(ErrInvalidState, "当前阶段不支持该请求")
}

func (dsh *discussStageHandler) OnExit(ctx *GameContext) {
}

func (dsh *discussStageHandler) SetOnSwitch(onSwitch func(string)) {
	dsh.onSwitch = onSwitch
}

// 投票阶段处理器
type voteStageHandler struct {
	onSwitch func(string)
}

func NewVoteStageHandler() *voteStageHandler {
	return &voteStageHandler{}
}

func (vsh *voteStageHandler) Stage() string {
	return PHASE_VOTING
}

func (vsh *voteStageHandler) OnEnter(ctx *GameContext) {
	// 清空投票记录
	ctx.Votes = make(map[string]string)

	alive := ctx.GetAlivePlayers()
	targets := make([]dto.VoteTarget, 0, len(alive))
	for _, p := range alive {
		targets = append(targets, dto.VoteTarget{ID: p.ID, Name: p.Name})
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_VOTING_STARTED,
		VotingStartedResponse{Players: targets},
	))
}

func (vsh *voteStageHandler) OnHandle(ctx *GameContext, action Action) error {
	switch action.Type {
	case REQ_VOTE:
		voter := ctx.GetPlayer(action.CallerID)
		if voter == nil || !voter.Alive {
			return Errorf(ErrAuthorization, "被淘汰的玩家不能投票")
		}

		target := ctx.GetPlayer(action.TargetID)
		if target == nil || !target.Alive {
			return Errorf(ErrValidation, "投票对象无效")
		}

		// 重复投票以最后一次为准
		ctx.Votes[voter.ID] = target.ID

		ctx.UnicastResp(voter.ID, WrapResponse(
			RESP_VOTE_SUBMITTED,
			VoteSubmittedResponse{VotedPlayerID: target.ID},
		))

		zap.L().Debug(
			"记录投票",
			zap.String("room_id", ctx.RoomID),
			zap.String("voter_id", voter.ID),
			zap.String("target_id", target.ID),
			zap.Int("votes", len(ctx.Votes)),
			zap.Int("alive", ctx.CountAlive()),
		)

		// 已离开玩家的投票仍然保留，所以这里用 >= 而不是 ==
		if len(ctx.Votes) >= ctx.CountAlive() {
			vsh.judge(ctx)
		}

		return nil

	case REQ_SEND_MESSAGE:
		return onChat(ctx, action)

	case REQ_START_VOTING:
		return rejectHostAction(ctx, action.CallerID, "只有房主可以开始投票", "投票已经开始")

	case REQ_START_GAME:
		return rejectStartGame(ctx, action.CallerID, "游戏已经开始")
	}

	return Errorf(ErrInvalidState, "当前阶段不支持该请求")
}

// 计票、淘汰并判定胜负，与触发计票的那一票在同一步内完成
func (vsh *voteStageHandler) judge(ctx *GameContext) {
	counts, eliminated := tallyVotes(ctx)

	// 计票后清空投票记录
	ctx.Votes = make(map[string]string)

	if eliminated == nil {
		// 所有票都投给了已经离开房间的玩家，重新开始投票
		zap.L().Info("计票没有有效对象，重新投票", zap.String("room_id", ctx.RoomID))
		vsh.OnEnter(ctx)
		return
	}

	eliminated.Alive = false

	ctx.UnicastResp(eliminated.ID, WrapResponse(
		RESP_PLAYER_ELIMINATED,
		PlayerEliminatedResponse{
			Message: "你已被淘汰，之后不能再发言或投票。",
		},
	))

	ctx.BroadcastResp(WrapResponse(
		RESP_VOTE_RESULT,
		VoteResultResponse{
			Eliminated: EliminatedPlayer{
				ID:   eliminated.ID,
				Name: eliminated.Name,
				Role: eliminated.Role,
			},
			VoteCounts: counts,
		},
	))

	zap.L().Info(
		"玩家被淘汰",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", eliminated.ID),
		zap.String("role", eliminated.Role),
		zap.Int("day", ctx.Day),
	)

	if winner := evaluateWinner(ctx); winner != "" {
		ctx.Winner = winner
		vsh.onSwitch(PHASE_ENDED)
		return
	}

	// 未分出胜负，进入下一天
	ctx.Day++
	vsh.onSwitch(PHASE_DISCUSSION)
}

// tallyVotes 统计每个对象的票数并选出被淘汰者。
// 只有仍在房间内且存活的对象可以被淘汰；最高票并列时从并列者中随机选一个
func tallyVotes(ctx *GameContext) (map[string]int, *Player) {
	counts := make(map[string]int)
	for _, targetID := range ctx.Votes {
		counts[targetID]++
	}

	maxVotes := 0
	candidates := make([]*Player, 0)

	// 按加入顺序遍历，随机源固定时结果可复现
	for _, p := range ctx.Players {
		p.Votes = counts[p.ID]

		if !p.Alive || p.Votes == 0 {
			continue
		}

		if p.Votes > maxVotes {
			maxVotes = p.Votes
			candidates = candidates[:0]
		}

		if p.Votes == maxVotes {
			candidates = append(candidates, p)
		}
	}

	switch len(candidates) {
	case 0:
		return counts, nil
	case 1:
		return counts, candidates[0]
	}

	return counts, candidates[ctx.Rand.IntN(len(candidates))]
}

// 返回胜利阵营，尚未分出胜负时返回空字符串
func evaluateWinner(ctx *GameContext) string {
	aliveConspirators := ctx.CountAliveRole(ROLE_CONSPIRATOR)
	aliveCrew := ctx.CountAliveRole(ROLE_CREW)

	if aliveConspirators == 0 {
		return WINNER_CREW
	}

	if aliveConspirators >= aliveCrew {
		return WINNER_CONSPIRATORS
	}

	return ""
}

func (vsh *voteStageHandler) OnExit(ctx *GameContext) {
}

func (vsh *voteStageHandler) SetOnSwitch(onSwitch func(string)) {
	vsh.onSwitch = onSwitch
}

// 结束阶段处理器
type endStageHandler struct {
	onSwitch func(string)
}

func NewEndStageHandler() *endStageHandler {
	return &endStageHandler{}
}

func (esh *endStageHandler) Stage() string {
	return PHASE_ENDED
}

func (esh *endStageHandler) OnEnter(ctx *GameContext) {
	ctx.Votes = make(map[string]string)
	ctx.EndedAt = ctx.now()

	// 游戏结束时才公开所有身份
	players := make([]dto.RevealedPlayer, 0, len(ctx.Players))
	for _, p := range ctx.Players {
		players = append(players, p.Revealed())
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_GAME_ENDED,
		GameEndedResponse{
			Winner:  ctx.Winner,
			Players: players,
		},
	))

	zap.L().Info(
		"游戏结束",
		zap.String("room_id", ctx.RoomID),
		zap.String("winner", ctx.Winner),
		zap.Int("day", ctx.Day),
	)
}

func (esh *endStageHandler) OnHandle(ctx *GameContext, action Action) error {
	switch action.Type {
	case REQ_SEND_MESSAGE:
		return onChat(ctx, action)

	case REQ_START_GAME:
		return rejectStartGame(ctx, action.CallerID, "游戏已结束")

	case REQ_START_VOTING:
		return rejectHostAction(ctx, action.CallerID, "只有房主可以开始投票", "游戏已结束")
	}

	return Errorf(ErrInvalidState, "游戏已结束")
}

func (esh *endStageHandler) OnExit(ctx *GameContext) {
}

func (esh *endStageHandler) SetOnSwitch(onSwitch func(string)) {
	esh.onSwitch = onSwitch
}

// 聊天在所有阶段对存活成员开放
func onChat(ctx *GameContext, action Action) error {
	sender := ctx.GetPlayer(action.CallerID)
	if sender == nil || !sender.Alive {
		return Errorf(ErrAuthorization, "被淘汰的玩家不能发言")
	}

	text := strings.TrimSpace(action.Message)
	if text == "" {
		return Errorf(ErrValidation, "消息不能为空")
	}

	if utf8.RuneCountInString(text) > MAX_MESSAGE_LEN {
		return Errorf(ErrValidation, "消息不能超过 %d 个字符", MAX_MESSAGE_LEN)
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_CHAT_MESSAGE,
		ChatMessageResponse{
			PlayerID:  sender.ID,
			Username:  sender.Name,
			Message:   text,
			Timestamp: ctx.now().Format(time.RFC3339),
		},
	))

	return nil
}

// 非房主一律拒绝；房主则说明当前阶段不允许
func rejectHostAction(ctx *GameContext, callerID, notHostMsg, wrongPhaseMsg string) error {
	if !ctx.IsHost(callerID) {
		return Errorf(ErrAuthorization, "%s", notHostMsg)
	}

	return Errorf(ErrInvalidState, "%s", wrongPhaseMsg)
}

// 开始游戏的检查顺序：房主、人数、阶段
func rejectStartGame(ctx *GameContext, callerID, wrongPhaseMsg string) error {
	if !ctx.IsHost(callerID) {
		return Errorf(ErrAuthorization, "只有房主可以开始游戏")
	}

	if len(ctx.Players) < MIN_PLAYERS {
		return Errorf(ErrPrecondition, "至少需要 %d 名玩家才能开始游戏", MIN_PLAYERS)
	}

	return Errorf(ErrInvalidState, "%s", wrongPhaseMsg)
}
