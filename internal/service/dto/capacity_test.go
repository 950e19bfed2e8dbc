package dto

import (
	"encoding/json"
	"testing"
)

func TestCapacityUnmarshal(t *testing.T) {
	cases := map[string]Capacity{
		`12`:    12,
		`"12"`:  12,
		`12.9`:  12,
		`"abc"`: 0,
		`""`:    0,
		`-1`:    0,
		`1e12`:  0,
		`null`:  0,
		`false`: 0,
	}

	for raw, want := range cases {
		var req CreateRoomRequest
		if err := json.Unmarshal([]byte(`{"max_players": `+raw+`}`), &req); err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}

		if req.MaxPlayers != want {
			t.Fatalf("%s: want %d, got %d", raw, want, req.MaxPlayers)
		}
	}

	var req CreateRoomRequest
	if err := json.Unmarshal([]byte(`{"max_players": {"n": 4}}`), &req); err == nil {
		t.Fatalf("object should be rejected")
	}
}
