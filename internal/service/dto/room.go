package dto

// 房间设置，只用于客户端倒计时展示，服务端不强制执行
type RoomSettings struct {
	DiscussionTime int `json:"discussion_time"`
	VoteTime       int `json:"vote_time"`
}

// 等待中房间列表的条目
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	Capacity    int    `json:"capacity"`
	HostName    string `json:"host_name"`
}

// 房间完整快照（公开部分）
type RoomSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	HostID   string         `json:"host_id"`
	HostName string         `json:"host_name"`
	Capacity int            `json:"capacity"`
	Phase    string         `json:"phase"`
	Day      int            `json:"day"`
	Settings RoomSettings   `json:"settings"`
	Players  []PublicPlayer `json:"players"`
}

type SetUsernameRequest struct {
	Name string `json:"name"`
}

type UsernameSetResponse struct {
	Username string `json:"username"`
}

type CreateRoomRequest struct {
	RoomName   string   `json:"room_name"`
	MaxPlayers Capacity `json:"max_players"`
}

type RoomCreatedResponse struct {
	RoomID string       `json:"room_id"`
	Room   RoomSnapshot `json:"room"`
}

type JoinRoomRequest struct {
	RoomID string `json:"room_id"`
}

type RoomJoinedResponse struct {
	Room RoomSnapshot `json:"room"`
}

type PlayerJoinedResponse struct {
	Player  PublicPlayer   `json:"player"`
	Players []PublicPlayer `json:"players"`
}

type PlayerLeftResponse struct {
	PlayerID string         `json:"player_id"`
	Players  []PublicPlayer `json:"players"`
}

type HostChangedResponse struct {
	HostID   string `json:"host_id"`
	HostName string `json:"host_name"`
}

type RoomLeftResponse struct {
	RoomID string `json:"room_id"`
}
