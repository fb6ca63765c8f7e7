package handler

import (
	"net/http"
	"testing"
)

func TestArenaHandler_Search(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{name: "チーム名で一致", query: "red%20sox", wantCount: 1, wantFirst: "Boston Red Sox"},
		{name: "空のクエリ", query: "", wantCount: 0},
		{name: "一致なし", query: "zzzz-no-team", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.do(http.MethodGet, "/api/arenas?q="+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}

			var resp arenaSearchResponse
			decodeBody(t, w, &resp)
			if resp.Arenas == nil {
				t.Fatal("expected arenas to be an empty array, not null")
			}
			if len(resp.Arenas) != tt.wantCount {
				t.Fatalf("len(arenas) = %d, want %d", len(resp.Arenas), tt.wantCount)
			}
			if tt.wantFirst != "" && resp.Arenas[0].Team != tt.wantFirst {
				t.Errorf("arenas[0].Team = %q, want %q", resp.Arenas[0].Team, tt.wantFirst)
			}
		})
	}
}

func TestArenaHandler_Draft(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	w := c.do(http.MethodGet, "/api/arenas/draft?team=boston%20bruins", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var d draftResponse
	decodeBody(t, w, &d)
	if d.Name != "Boston Bruins" || d.City != "Boston" || d.Sport != "NHL" {
		t.Errorf("draft = %+v", d)
	}
	if d.Lat == nil || d.Lng == nil {
		t.Error("expected coordinates to be pre-filled")
	}
	if !d.Visited {
		t.Error("expected visited to default to true")
	}
}

func TestArenaHandler_Draft_UnknownTeam_Returns404(t *testing.T) {
	env := newTestEnv(t)

	w := env.client(t).do(http.MethodGet, "/api/arenas/draft?team=Nonexistent%20FC", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != "ARENA_NOT_FOUND" {
		t.Errorf("code = %q, want ARENA_NOT_FOUND", body["code"])
	}
}
