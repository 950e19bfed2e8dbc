package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"conspiracy-be/internal/api/http"
	"conspiracy-be/internal/api/http/websocket"
	"conspiracy-be/internal/config"
	"conspiracy-be/internal/logger"
	"conspiracy-be/internal/service"
	"conspiracy-be/internal/service/dto"
	"conspiracy-be/internal/state"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 所有连接共用一个 Hub，房间服务通过它发送消息
	hub := websocket.NewHub()

	roomSvc := service.NewRoomService(hub, service.Options{
		DefaultCapacity: cfg.DefaultCapacity,
		Settings: dto.RoomSettings{
			DiscussionTime: cfg.DiscussionTime,
			VoteTime:       cfg.VoteTime,
		},
		EndedRoomTTL:  cfg.EndedRoomTTL,
		SweepInterval: cfg.SweepInterval,
		RequestBuffer: cfg.RequestBuffer,
	})

	go roomSvc.Run(ctx)

	// 组装应用状态
	appState := state.NewAppState(cfg, roomSvc, hub)

	// 启动服务器
	if err := http.RunServer(ctx, appState); err != nil {
		zap.L().Fatal("服务器异常退出", zap.Error(err))
	}

	zap.L().Info("服务器已关闭")
}
