package dto

// 房间内对外公开的玩家信息，游戏进行中绝不包含身份
type PublicPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
	// 仅用于展示的得票数，以服务端计票结果为准
	Votes int `json:"votes"`
}

// 游戏结束后公开的玩家信息，包含身份
type RevealedPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Alive bool   `json:"alive"`
}

// 投票阶段可被投票的玩家
type VoteTarget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
