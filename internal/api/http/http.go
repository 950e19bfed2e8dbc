package http

import (
	"context"
	"fmt"
	"os"
	"time"

	"conspiracy-be/internal/api/http/websocket"
	"conspiracy-be/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// 收到退出信号后等待正在处理的 HTTP 请求的时间
const SHUTDOWN_TIMEOUT = 5 * time.Second

// svcCtx 是房间服务事件循环的生命周期
func newApp(svcCtx context.Context, appState *state.AppState) *iris.Application {
	app := iris.Default()

	// 静态目录不存在时只提供接口
	if info, err := os.Stat(appState.Cfg.StaticDir); err == nil && info.IsDir() {
		app.HandleDir(
			"/",
			iris.Dir(appState.Cfg.StaticDir),
			iris.DirOptions{
				IndexName: "index.html",
				SPA:       true,
				Compress:  true,
			},
		)
	} else {
		zap.L().Warn("静态资源目录不存在", zap.String("static_dir", appState.Cfg.StaticDir))
	}

	gw := websocket.NewGateway(
		svcCtx,
		appState.RoomSvc,
		appState.Hub,
		websocket.HeartbeatConfig{
			Interval: appState.Cfg.HeartbeatInterval,
			Timeout:  appState.Cfg.HeartbeatTimeout,
		},
	)

	api := app.Party("/api/v1")

	api.Get("/rooms", ListRooms(appState))
	api.Get("/rooms/{id:string}/qrcode", RoomQRCode(appState))

	api.Get("/ws", websocket.JoinGame(gw))

	return app
}

// RunServer 阻塞直到 ctx 结束或监听失败
func RunServer(ctx context.Context, appState *state.AppState) error {
	app := newApp(ctx, appState)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("关闭服务器失败", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	zap.S().Infof("服务器监听 %s", addr)

	return app.Listen(
		addr,
		iris.WithoutInterruptHandler,
		iris.WithoutServerError(iris.ErrServerClosed),
	)
}
