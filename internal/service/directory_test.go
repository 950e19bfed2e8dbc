package service

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"conspiracy-be/internal/service/game"
)

func TestGenerateRoomID(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))

	for range 100 {
		id := generateRoomID(rng)
		if len(id) != ROOM_ID_LENGTH {
			t.Fatalf("unexpected length: %q", id)
		}

		for _, c := range id {
			if !strings.ContainsRune(ROOM_ID_CHARS, c) {
				t.Fatalf("unexpected character %q in %q", c, id)
			}
		}
	}
}

func TestRoomDirectory_RetriesOnCollision(t *testing.T) {
	rd := NewRoomDirectory(rand.New(rand.NewPCG(1, 2)))

	queue := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	rd.genID = func() string {
		id := queue[0]
		queue = queue[1:]
		return id
	}

	first, err := rd.Create("one", 4, game.NewPlayer("h1", "Host1"), game.RoomOptions{})
	if err != nil || first.ID() != "AAAAAA" {
		t.Fatalf("first create: id=%v err=%v", first, err)
	}

	second, err := rd.Create("two", 4, game.NewPlayer("h2", "Host2"), game.RoomOptions{})
	if err != nil || second.ID() != "BBBBBB" {
		t.Fatalf("second create should skip the taken id, got %v err=%v", second, err)
	}

	if rd.Count() != 2 {
		t.Fatalf("want 2 rooms, got %d", rd.Count())
	}
}

func TestRoomDirectory_Exhausted(t *testing.T) {
	rd := NewRoomDirectory(rand.New(rand.NewPCG(1, 2)))
	rd.genID = func() string { return "AAAAAA" }

	if _, err := rd.Create("one", 4, game.NewPlayer("h1", "Host1"), game.RoomOptions{}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	if _, err := rd.Create("two", 4, game.NewPlayer("h2", "Host2"), game.RoomOptions{}); !errors.Is(err, errRoomIDExhausted) {
		t.Fatalf("want errRoomIDExhausted, got %v", err)
	}
}

func TestRoomDirectory_GetNormalizesID(t *testing.T) {
	rd := NewRoomDirectory(rand.New(rand.NewPCG(1, 2)))

	room, err := rd.Create("one", 4, game.NewPlayer("h1", "Host1"), game.RoomOptions{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, ok := rd.Get("  " + strings.ToLower(room.ID()) + " "); !ok {
		t.Fatalf("lookup should ignore case and surrounding spaces")
	}

	rd.Delete(room.ID())
	if _, ok := rd.Get(room.ID()); ok {
		t.Fatalf("room should be deleted")
	}
}

func TestRoomDirectory_ListWaiting(t *testing.T) {
	rs, _, _ := newTestService(t, 3)
	ids := connectNamed(t, rs, 5)

	roomWith(t, rs, ids[:4])
	if _, err := rs.CreateRoom(ids[4], "second", 6); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if got := len(rs.ListWaitingRooms()); got != 2 {
		t.Fatalf("want 2 waiting rooms, got %d", got)
	}

	if _, err := rs.StartGame(ids[0]); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waiting := rs.ListWaitingRooms()
	if len(waiting) != 1 || waiting[0].Name != "second" || waiting[0].Capacity != 6 || waiting[0].HostName != "Player5" {
		t.Fatalf("started room should leave the list, got %+v", waiting)
	}
}
