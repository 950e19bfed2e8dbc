package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 请求类型
const (
	REQ_SET_USERNAME  = "setUsername"
	REQ_CREATE_ROOM   = "createRoom"
	REQ_JOIN_ROOM     = "joinRoom"
	REQ_LEAVE_ROOM    = "leaveRoom"
	REQ_START_GAME    = "startGame"
	REQ_SEND_MESSAGE  = "sendMessage"
	REQ_START_VOTING  = "startVoting"
	REQ_VOTE          = "vote"
	REQ_GET_ROOM_LIST = "getRoomList"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TryUnwrap 在请求类型匹配时解析 Data，类型不符或内容无效时返回 nil
func TryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	var payload T

	// 无负载的请求允许省略 data
	if len(wrapper.Data) == 0 {
		return &payload
	}

	if err := json.Unmarshal(wrapper.Data, &payload); err != nil {
		zap.L().Debug(
			"Failed to unwrap request",
			zap.String("request_type", reqType),
			zap.Error(err),
		)
		return nil
	}

	return &payload
}

// 响应类型
const (
	RESP_ERROR = "error"

	RESP_USERNAME_SET      = "usernameSet"
	RESP_ROOM_LIST         = "roomList"
	RESP_ROOM_LIST_UPDATED = "roomListUpdated"
	RESP_ROOM_CREATED      = "roomCreated"
	RESP_ROOM_JOINED       = "roomJoined"
	RESP_PLAYER_JOINED     = "playerJoined"
	RESP_PLAYER_LEFT       = "playerLeft"
	RESP_HOST_CHANGED      = "hostChanged"
	RESP_ROOM_LEFT         = "roomLeft"
	RESP_GAME_STARTED      = "gameStarted"
	RESP_ROLE_ASSIGNED     = "roleAssigned"
	RESP_CHAT_MESSAGE      = "chatMessage"
	RESP_VOTING_STARTED    = "votingStarted"
	RESP_VOTE_SUBMITTED    = "voteSubmitted"
	RESP_VOTE_RESULT       = "voteResult"
	RESP_PLAYER_ELIMINATED = "playerEliminated"
	RESP_NEXT_DAY          = "nextDay"
	RESP_GAME_ENDED        = "gameEnded"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data,omitempty"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
