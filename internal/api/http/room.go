package http

import (
	"net/url"

	"conspiracy-be/internal/service"
	"conspiracy-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// 二维码边长，单位像素
const QR_SIZE = 320

// ListRooms 返回所有等待中的房间，内容与 roomList 消息一致
func ListRooms(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		rooms, err := appState.RoomSvc.WaitingRooms(ctx.Request().Context())
		if err != nil {
			ctx.StatusCode(iris.StatusServiceUnavailable)
			ctx.JSON(iris.Map{
				"error": "服务暂不可用",
			})
			return
		}

		ctx.JSON(rooms)
	}
}

// RoomQRCode 生成房间加入链接的二维码图片
func RoomQRCode(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		roomID := service.NormalizeRoomID(ctx.Params().Get("id"))

		exists, err := appState.RoomSvc.RoomExists(ctx.Request().Context(), roomID)
		if err != nil {
			ctx.StatusCode(iris.StatusServiceUnavailable)
			ctx.JSON(iris.Map{
				"error": "服务暂不可用",
			})
			return
		}

		if !exists {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": "找不到房间",
			})
			return
		}

		png, err := joinQRCode(appState.Cfg.BaseURL(), roomID)
		if err != nil {
			zap.L().Error("生成二维码失败", zap.String("room_id", roomID), zap.Error(err))
			ctx.StatusCode(iris.StatusInternalServerError)
			ctx.JSON(iris.Map{
				"error": "生成二维码失败",
			})
			return
		}

		ctx.ContentType("image/png")
		ctx.Write(png)
	}
}

func joinURL(baseURL, roomID string) string {
	return baseURL + "/?room=" + url.QueryEscape(roomID)
}

func joinQRCode(baseURL, roomID string) ([]byte, error) {
	return qrcode.Encode(joinURL(baseURL, roomID), qrcode.Medium, QR_SIZE)
}
