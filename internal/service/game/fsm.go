package game

import (
	"go.uber.org/zap"
)

// Action 是已经由调度层解析过的房间内操作
type Action struct {
	Type     string
	CallerID string
	Message  string
	TargetID string
}

// GameMachine 是游戏状态机，负责按当前阶段分发操作并执行阶段切换。
// 它本身不加锁，调用方必须保证同一房间的操作串行执行
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler
}

func NewGameMachine(ctx *GameContext) *GameMachine {
	gm := &GameMachine{
		ctx: ctx,
	}

	ctx.Phase = PHASE_WAITING
	gm.setHandler(NewWaitStageHandler())
	gm.handler.OnEnter(ctx)

	return gm
}

func (gm *GameMachine) setHandler(handler StageHandler) {
	// 设置 onSwitch 回调
	handler.SetOnSwitch(func(nextPhase string) {
		gm.ctx.Phase = nextPhase
	})

	gm.handler = handler
}

// Handle 处理一个操作，并在同一步内完成由它触发的所有阶段切换
func (gm *GameMachine) Handle(action Action) error {
	err := gm.handler.OnHandle(gm.ctx, action)
	if err != nil {
		zap.L().Debug(
			"处理请求失败",
			zap.String("room_id", gm.ctx.RoomID),
			zap.String("phase", gm.handler.Stage()),
			zap.String("action", action.Type),
			zap.Error(err),
		)

		return err
	}

	// 阶段可能连续切换（例如计票后直接进入下一天）
	for gm.ctx.Phase != gm.handler.Stage() {
		if !gm.switchStage() {
			break
		}

		gm.handler.OnEnter(gm.ctx)
	}

	return nil
}

func (gm *GameMachine) switchStage() bool {
	// 执行当前 handler 的 OnExit
	gm.handler.OnExit(gm.ctx)

	// 根据新状态创建对应的 handler
	var newHandler StageHandler

	switch gm.ctx.Phase {
	case PHASE_WAITING:
		newHandler = NewWaitStageHandler()
	case PHASE_DISCUSSION:
		newHandler = NewDiscussStageHandler()
	case PHASE_VOTING:
		newHandler = NewVoteStageHandler()
	case PHASE_ENDED:
		newHandler = NewEndStageHandler()
	default:
		zap.L().Error(
			"未知的游戏阶段",
			zap.String("room_id", gm.ctx.RoomID),
			zap.String("phase", gm.ctx.Phase),
		)
		gm.ctx.Phase = gm.handler.Stage()
		return false
	}

	zap.L().Info(
		"游戏阶段切换",
		zap.String("room_id", gm.ctx.RoomID),
		zap.String("from", gm.handler.Stage()),
		zap.String("to", newHandler.Stage()),
		zap.Int("day", gm.ctx.Day),
	)

	gm.setHandler(newHandler)

	return true
}

func (gm *GameMachine) Phase() string {
	return gm.handler.Stage()
}

func (gm *GameMachine) IsFinished() bool {
	return gm.handler.Stage() == PHASE_ENDED
}
