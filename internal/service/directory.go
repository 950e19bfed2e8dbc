package service

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"

	"conspiracy-be/internal/service/dto"
	"conspiracy-be/internal/service/game"
)

const (
	ROOM_ID_LENGTH = 6
	// 去掉了容易混淆的字符，方便口头告知房间号
	ROOM_ID_CHARS = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxRoomIDAttempts = 32
)

var errRoomIDExhausted = errors.New("无法生成房间号，请稍后再试")

// RoomDirectory 保存房间 ID 到房间的映射，同样只在事件循环中访问
type RoomDirectory struct {
	rooms map[string]*game.Room
	genID func() string
}

func NewRoomDirectory(rng *rand.Rand) *RoomDirectory {
	return &RoomDirectory{
		rooms: make(map[string]*game.Room),
		genID: func() string {
			return generateRoomID(rng)
		},
	}
}

func generateRoomID(rng *rand.Rand) string {
	code := make([]byte, ROOM_ID_LENGTH)
	for i := range code {
		code[i] = ROOM_ID_CHARS[rng.IntN(len(ROOM_ID_CHARS))]
	}

	return string(code)
}

// 房间号不区分大小写，忽略首尾空白
func NormalizeRoomID(roomID string) string {
	return strings.ToUpper(strings.TrimSpace(roomID))
}

// Create 生成不冲突的房间号并以 host 为房主创建房间
func (rd *RoomDirectory) Create(
	name string,
	capacity int,
	host *game.Player,
	opts game.RoomOptions,
) (*game.Room, error) {
	for range maxRoomIDAttempts {
		id := rd.genID()
		if _, exists := rd.rooms[id]; exists {
			continue
		}

		room := game.NewRoom(id, name, capacity, host, opts)
		rd.rooms[id] = room

		return room, nil
	}

	return nil, errRoomIDExhausted
}

func (rd *RoomDirectory) Get(roomID string) (*game.Room, bool) {
	room, ok := rd.rooms[NormalizeRoomID(roomID)]
	return room, ok
}

func (rd *RoomDirectory) Delete(roomID string) {
	delete(rd.rooms, roomID)
}

func (rd *RoomDirectory) Count() int {
	return len(rd.rooms)
}

// 按创建时间排序的所有房间
func (rd *RoomDirectory) All() []*game.Room {
	rooms := make([]*game.Room, 0, len(rd.rooms))
	for _, room := range rd.rooms {
		rooms = append(rooms, room)
	}

	slices.SortFunc(rooms, func(a, b *game.Room) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})

	return rooms
}

// ListWaiting 只读，返回所有等待中的房间
func (rd *RoomDirectory) ListWaiting() []dto.RoomSummary {
	summaries := make([]dto.RoomSummary, 0, len(rd.rooms))
	for _, room := range rd.All() {
		if room.Phase() == game.PHASE_WAITING {
			summaries = append(summaries, room.Summary())
		}
	}

	return summaries
}
