package api_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/rinktrack/internal/adapters/http/api"
	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
	"github.com/okian/rinktrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func newClient(t *testing.T, opts ...api.Option) *client {
	t.Helper()
	svc := service.New(service.WithClock(clockwork.NewFakeClock()))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, opts...).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return &client{t: t, base: srv.URL}
}

// do sends body as JSON and decodes a JSON reply into out when out is
// non-nil.
func (c *client) do(method, path string, body, out any) *http.Response {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			c.t.Fatalf("decode %s %s: %v: %s", method, path, err, raw)
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp
}

func gameConfig(id string) tracker.Config {
	return tracker.Config{
		GameID:                id,
		Home:                  model.Team{ID: "HOM", Name: "Harbor Hawks"},
		Away:                  model.Team{ID: "AWY", Name: "Valley Wolves"},
		Rules:                 model.DefaultRules(),
		HomeAttacksRightFirst: true,
		Roster: []model.Player{
			{ID: "h1", Name: "Ada", TeamID: "HOM", Jersey: 9},
			{ID: "h2", Name: "Ben", TeamID: "HOM", Jersey: 17},
			{ID: "a1", Name: "Dee", TeamID: "AWY", Jersey: 4},
		},
	}
}

type openReply struct {
	Resumed bool         `json:"resumed"`
	Session service.View `json:"session"`
}

type errorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestSessionsAPI(t *testing.T) {
	Convey("Given a running API", t, func() {
		c := newClient(t)

		Convey("Opening a game creates a session", func() {
			var open openReply
			resp := c.do(http.MethodPost, "/sessions", gameConfig("g1"), &open)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(open.Resumed, ShouldBeFalse)
			So(open.Session.Snapshot.GameID, ShouldEqual, "g1")
			So(open.Session.Snapshot.Period, ShouldEqual, 1)

			var list struct {
				Sessions []string `json:"sessions"`
			}
			c.do(http.MethodGet, "/sessions", nil, &list)
			So(list.Sessions, ShouldResemble, []string{"g1"})

			Convey("Opening it again resumes it", func() {
				resp := c.do(http.MethodPost, "/sessions", gameConfig("g1"), &open)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(open.Resumed, ShouldBeTrue)
			})

			Convey("Closing unloads it", func() {
				resp := c.do(http.MethodDelete, "/sessions/g1", nil, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)

				var e errorReply
				resp = c.do(http.MethodGet, "/sessions/g1", nil, &e)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
				So(e.Code, ShouldEqual, "not_found")
			})
		})

		Convey("A malformed body is rejected", func() {
			var e errorReply
			resp := c.do(http.MethodPost, "/sessions", map[string]any{"game_id": "g1", "bogus": 1}, &e)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(e.Code, ShouldEqual, "validation_error")
		})

		Convey("An unknown session is not found", func() {
			resp := c.do(http.MethodPost, "/sessions/nope/undo", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestTrackingAPI(t *testing.T) {
	Convey("Given an open game", t, func() {
		c := newClient(t)
		c.do(http.MethodPost, "/sessions", gameConfig("g1"), nil)

		Convey("Keys and actions drive the dispatcher", func() {
			resp := c.do(http.MethodPut, "/sessions/g1/slots/1", map[string]string{"player_id": "h1"}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var res struct {
				Handled  bool   `json:"handled"`
				PlayerID string `json:"player_id"`
			}
			c.do(http.MethodPost, "/sessions/g1/keys", map[string]string{"key": "1"}, &res)
			So(res.Handled, ShouldBeTrue)
			So(res.PlayerID, ShouldEqual, "h1")

			var act struct {
				Result struct {
					EventID string `json:"event_id"`
				} `json:"result"`
				Duplicate bool `json:"duplicate"`
			}
			body := map[string]any{"action": "log_goal", "slot": 1, "request_id": "r-1"}
			resp = c.do(http.MethodPost, "/sessions/g1/actions", body, &act)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(act.Duplicate, ShouldBeFalse)
			So(act.Result.EventID, ShouldNotBeEmpty)

			c.do(http.MethodPost, "/sessions/g1/actions", body, &act)
			So(act.Duplicate, ShouldBeTrue)

			var v service.View
			c.do(http.MethodGet, "/sessions/g1", nil, &v)
			So(v.Snapshot.Score, ShouldResemble, model.Score{Home: 1})
			So(v.Snapshot.OnIce, ShouldResemble, []string{"h1"})
			So(v.CanUndo, ShouldBeTrue)

			c.do(http.MethodPost, "/sessions/g1/undo", nil, &v)
			So(v.Snapshot.Score, ShouldResemble, model.Score{})
			c.do(http.MethodPost, "/sessions/g1/redo", nil, &v)
			So(v.Snapshot.Score, ShouldResemble, model.Score{Home: 1})
		})

		Convey("An unbound key is not handled", func() {
			var res struct {
				Handled bool `json:"handled"`
			}
			resp := c.do(http.MethodPost, "/sessions/g1/keys", map[string]string{"chord": "ctrl+q"}, &res)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(res.Handled, ShouldBeFalse)
		})

		Convey("An unknown action is a validation error", func() {
			resp := c.do(http.MethodPost, "/sessions/g1/actions", map[string]any{"action": "dance"}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Events can be recorded, amended, filtered and retracted", func() {
			var ev model.Event
			resp := c.do(http.MethodPost, "/sessions/g1/events", map[string]any{
				"type": "shot", "period": 1, "seconds": 120, "players": []string{"a1"},
			}, &ev)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(ev.Side, ShouldEqual, model.Away)
			So(ev.Time.Seconds, ShouldEqual, 120)

			c.do(http.MethodPost, "/sessions/g1/events", map[string]any{
				"type": "hit", "period": 1, "seconds": 60, "players": []string{"h1"},
			}, nil)

			var list struct {
				Events []model.Event `json:"events"`
			}
			c.do(http.MethodGet, "/sessions/g1/events", nil, &list)
			So(list.Events, ShouldHaveLength, 2)
			So(list.Events[0].Type, ShouldEqual, model.EventHit)

			c.do(http.MethodGet, "/sessions/g1/events?side=away", nil, &list)
			So(list.Events, ShouldHaveLength, 1)

			resp = c.do(http.MethodPatch, "/sessions/g1/events/"+ev.ID, map[string]any{"highlight": true}, &ev)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(ev.Highlight, ShouldBeTrue)

			c.do(http.MethodGet, "/sessions/g1/events?highlight=true", nil, &list)
			So(list.Events, ShouldHaveLength, 1)

			resp = c.do(http.MethodDelete, "/sessions/g1/events/"+ev.ID, nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			resp = c.do(http.MethodDelete, "/sessions/g1/events/"+ev.ID, nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("A bad event filter is rejected", func() {
			resp := c.do(http.MethodGet, "/sessions/g1/events?period=zero", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An event past the period end is rejected", func() {
			var e errorReply
			resp := c.do(http.MethodPost, "/sessions/g1/events", map[string]any{
				"type": "shot", "period": 1, "seconds": 5000, "players": []string{"a1"},
			}, &e)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(e.Code, ShouldEqual, "validation_error")
		})

		Convey("Shifts start and end at explicit times", func() {
			var out struct {
				Shifts []model.Shift `json:"shifts"`
			}
			resp := c.do(http.MethodPost, "/sessions/g1/shifts/start", map[string]any{"player_id": "h2", "seconds": 10}, &out)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			c.do(http.MethodPost, "/sessions/g1/shifts/end", map[string]any{"player_id": "h2", "seconds": 55}, &out)
			So(out.Shifts, ShouldHaveLength, 1)
			So(out.Shifts[0].Start.Seconds, ShouldEqual, 10)
			So(out.Shifts[0].End.Seconds, ShouldEqual, 55)

			var e errorReply
			resp = c.do(http.MethodPost, "/sessions/g1/shifts/end", map[string]any{"player_id": "h2"}, &e)
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			So(e.Code, ShouldEqual, "invalid_state_transition")

			c.do(http.MethodGet, "/sessions/g1/shifts?player_id=h2", nil, &out)
			So(out.Shifts, ShouldHaveLength, 1)
		})

		Convey("The clock moves and rejects unknown operations", func() {
			var v service.View
			c.do(http.MethodPost, "/sessions/g1/clock", map[string]any{"op": "advance", "value": 30}, &v)
			So(v.Snapshot.Clock, ShouldEqual, 30)

			var e errorReply
			resp := c.do(http.MethodPost, "/sessions/g1/clock", map[string]any{"op": "advance", "value": 5000}, &e)
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			So(e.Code, ShouldEqual, "out_of_range")

			c.do(http.MethodPost, "/sessions/g1/clock", map[string]any{"op": "period", "value": 2}, &v)
			So(v.Snapshot.Period, ShouldEqual, 2)

			resp = c.do(http.MethodPost, "/sessions/g1/clock", map[string]any{"op": "warp"}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Finishing locks the game", func() {
			var v service.View
			resp := c.do(http.MethodPost, "/sessions/g1/finish", nil, &v)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(v.Snapshot.Status, ShouldEqual, model.StatusFinal)

			resp = c.do(http.MethodPost, "/sessions/g1/clock", map[string]any{"op": "advance", "value": 5}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestPersistenceAPI(t *testing.T) {
	Convey("Given an open game with one event", t, func() {
		c := newClient(t)
		c.do(http.MethodPost, "/sessions", gameConfig("g1"), nil)
		c.do(http.MethodPost, "/sessions/g1/events", map[string]any{
			"type": "shot", "period": 1, "seconds": 42, "players": []string{"h1"},
		}, nil)

		Convey("Save writes the latest revision", func() {
			var st struct {
				LatestRevision uint64 `json:"latest_revision"`
				SavedRevision  uint64 `json:"saved_revision"`
			}
			resp := c.do(http.MethodPost, "/sessions/g1/save", nil, &st)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(st.SavedRevision, ShouldEqual, st.LatestRevision)
		})

		Convey("Sync without a remote is refused", func() {
			resp := c.do(http.MethodPost, "/sessions/g1/sync", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("Export returns CSV", func() {
			resp := c.do(http.MethodGet, "/sessions/g1/export?kind=events", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldStartWith, "text/csv")
			records, err := csv.NewReader(resp.Body).ReadAll()
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 2)
			So(records[0][0], ShouldEqual, "kind")
			So(records[1][0], ShouldEqual, "event")

			resp = c.do(http.MethodGet, "/sessions/g1/export?kind=goals", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Dashboard data comes from local snapshots", func() {
			c.do(http.MethodPost, "/sessions/g1/save", nil, nil)

			var ents struct {
				Entities []string `json:"entities"`
			}
			c.do(http.MethodGet, "/data", nil, &ents)
			So(ents.Entities, ShouldContain, "games")

			var rows struct {
				Rows []map[string]any `json:"rows"`
			}
			resp := c.do(http.MethodGet, "/data/games", nil, &rows)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(rows.Rows, ShouldHaveLength, 1)
			So(rows.Rows[0]["game_id"], ShouldEqual, "g1")

			resp = c.do(http.MethodGet, "/data/standings", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAuthAndHealth(t *testing.T) {
	Convey("Given an API behind a token", t, func() {
		c := newClient(t, api.WithAuthToken("s3cret"))

		Convey("Requests without the token are refused", func() {
			var e errorReply
			resp := c.do(http.MethodGet, "/sessions", nil, &e)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(e.Code, ShouldEqual, "unauthorized")
		})

		Convey("Requests with the token pass", func() {
			c.token = "s3cret"
			resp := c.do(http.MethodGet, "/sessions", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Health and stats stay open", func() {
			resp := c.do(http.MethodGet, "/healthz", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			body, _ := io.ReadAll(resp.Body)
			So(strings.Contains(string(body), "rinktrack_tracker_active_sessions"), ShouldBeTrue)

			var stats map[string]any
			resp = c.do(http.MethodGet, "/stats", nil, &stats)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(stats, ShouldContainKey, "sessions")
		})
	})
}
