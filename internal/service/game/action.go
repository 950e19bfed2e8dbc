package game

import "conspiracy-be/internal/service/dto"

type SendMessageRequest struct {
	Message string `json:"message"`
}

type ChatMessageResponse struct {
	PlayerID  string `json:"player_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	IsSystem  bool   `json:"is_system"`
}

type VoteRequest struct {
	TargetID string `json:"target_id"`
}

type VoteSubmittedResponse struct {
	VotedPlayerID string `json:"voted_player_id"`
}

type GameStartedResponse struct {
	Day     int                `json:"day"`
	Phase   string             `json:"phase"`
	Players []dto.PublicPlayer `json:"players"`
}

// 只单播给本人
type RoleAssignedResponse struct {
	Role string `json:"role"`
}

type VotingStartedResponse struct {
	Players []dto.VoteTarget `json:"players"`
}

type EliminatedPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type VoteResultResponse struct {
	Eliminated EliminatedPlayer `json:"eliminated"`
	// key: 被投票者 ID，value: 得票数
	VoteCounts map[string]int `json:"vote_counts"`
}

type PlayerEliminatedResponse struct {
	Message string `json:"message"`
}

type NextDayResponse struct {
	Day   int    `json:"day"`
	Phase string `json:"phase"`
}

type GameEndedResponse struct {
	Winner  string               `json:"winner"`
	Players []dto.RevealedPlayer `json:"players"`
}
