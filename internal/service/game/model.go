package game

import "conspiracy-be/internal/service/dto"

// 玩家身份
const (
	ROLE_UNSET       = ""
	ROLE_CREW        = "crew"
	ROLE_CONSPIRATOR = "conspirator"
)

// 胜利阵营
const (
	WINNER_CREW         = "crew"
	WINNER_CONSPIRATORS = "conspirators"
)

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Alive bool   `json:"alive"`
	Votes int    `json:"votes"`
}

func NewPlayer(id, name string) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		Role:  ROLE_UNSET,
		Alive: true,
	}
}

// 去掉身份信息后的公开视图
func (p *Player) Public() dto.PublicPlayer {
	return dto.PublicPlayer{
		ID:    p.ID,
		Name:  p.Name,
		Alive: p.Alive,
		Votes: p.Votes,
	}
}

func (p *Player) Revealed() dto.RevealedPlayer {
	return dto.RevealedPlayer{
		ID:    p.ID,
		Name:  p.Name,
		Role:  p.Role,
		Alive: p.Alive,
	}
}
