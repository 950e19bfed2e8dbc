package state

import (
	"conspiracy-be/internal/api/http/websocket"
	"conspiracy-be/internal/config"
	"conspiracy-be/internal/service"
)

type AppState struct {
	Cfg     *config.AppConfig
	RoomSvc *service.RoomService
	// 所有在线连接，同时作为 RoomSvc 的 Transport
	Hub *websocket.Hub
}

func NewAppState(
	cfg *config.AppConfig,
	roomSvc *service.RoomService,
	hub *websocket.Hub,
) *AppState {
	return &AppState{
		Cfg:     cfg,
		RoomSvc: roomSvc,
		Hub:     hub,
	}
}
