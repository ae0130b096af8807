package service_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/rinktrack/internal/adapters/autosave"
	"github.com/okian/rinktrack/internal/adapters/dataaccess"
	"github.com/okian/rinktrack/internal/adapters/export"
	"github.com/okian/rinktrack/internal/adapters/repository"
	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/domain/dispatch"
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

type recordingRemote struct {
	mu     sync.Mutex
	pushed []model.Snapshot
	err    error
}

func (r *recordingRemote) Push(_ context.Context, snap model.Snapshot) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 1, r.err
	}
	r.pushed = append(r.pushed, snap)
	return 1, nil
}

type flakyStore struct {
	*repository.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *flakyStore) Save(ctx context.Context, snap model.Snapshot) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, snap)
}

func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{service.WithClock(clockwork.NewFakeClock())}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When it has not been started", func() {
			_, _, err := svc.OpenSession(context.Background(), gameConfig("g1"))

			Convey("Then sessions should be refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When started and stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop(context.Background())

			Convey("Then it should report stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_OpenSession(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(t)
		ctx := context.Background()

		Convey("When a session is opened", func() {
			view, resumed, err := svc.OpenSession(ctx, gameConfig("g1"))

			Convey("Then a fresh game should start at P1 0:00", func() {
				So(err, ShouldBeNil)
				So(resumed, ShouldBeFalse)
				So(view.Snapshot.Period, ShouldEqual, 1)
				So(view.Snapshot.Clock, ShouldEqual, 0)
				So(view.Snapshot.Status, ShouldEqual, model.StatusLive)
				So(svc.Sessions(), ShouldResemble, []string{"g1"})
			})

			Convey("Then opening it again should resume the live session", func() {
				_, err := svc.Clock(ctx, "g1", service.ClockChange{Op: service.ClockAdvance, Value: 30})
				So(err, ShouldBeNil)
				view, resumed, err := svc.OpenSession(ctx, gameConfig("g1"))
				So(err, ShouldBeNil)
				So(resumed, ShouldBeTrue)
				So(view.Snapshot.Clock, ShouldEqual, 30)
			})
		})

		Convey("When the config is invalid", func() {
			_, _, err := svc.OpenSession(ctx, gameConfig("  "))

			Convey("Then it should fail validation", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When an unknown session is used", func() {
			_, err := svc.View(ctx, "missing")

			Convey("Then it should not be found", func() {
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Perform(t *testing.T) {
	Convey("Given a session with h1 in slot 1", t, func() {
		svc := startService(t)
		ctx := context.Background()
		_, _, err := svc.OpenSession(ctx, gameConfig("g1"))
		So(err, ShouldBeNil)
		_, err = svc.AssignSlot(ctx, "g1", 1, "h1")
		So(err, ShouldBeNil)
		toggle := dispatch.Command{Action: dispatch.ActionShiftToggle, Slot: 1}

		Convey("When the same request is submitted twice", func() {
			_, dup1, err1 := svc.Perform(ctx, "g1", "req-1", toggle)
			_, dup2, err2 := svc.Perform(ctx, "g1", "req-1", toggle)

			Convey("Then it should be applied once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(dup1, ShouldBeFalse)
				So(dup2, ShouldBeTrue)
				view, _ := svc.View(ctx, "g1")
				So(view.Snapshot.OnIce, ShouldResemble, []string{"h1"})
			})
		})

		Convey("When a request fails", func() {
			shot := dispatch.Command{Action: dispatch.ActionLogShot, Slot: 2}
			_, _, err := svc.Perform(ctx, "g1", "req-2", shot)
			So(err, ShouldNotBeNil)

			Convey("Then the same request id can be retried", func() {
				_, err := svc.AssignSlot(ctx, "g1", 2, "h2")
				So(err, ShouldBeNil)
				res, dup, err := svc.Perform(ctx, "g1", "req-2", shot)
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(res.EventID, ShouldNotBeEmpty)
			})
		})

		Convey("When a key is pressed", func() {
			res, err := svc.HandleKey(ctx, "g1", dispatch.KeyEvent{Key: "1"})

			Convey("Then it should run the bound action", func() {
				So(err, ShouldBeNil)
				So(res.Handled, ShouldBeTrue)
				So(res.PlayerID, ShouldEqual, "h1")
			})
		})
	})
}

func TestService_Tracking(t *testing.T) {
	Convey("Given a live session", t, func() {
		svc := startService(t)
		ctx := context.Background()
		_, _, err := svc.OpenSession(ctx, gameConfig("g1"))
		So(err, ShouldBeNil)
		_, err = svc.StartShift(ctx, "g1", service.ShiftChange{PlayerID: "h1"})
		So(err, ShouldBeNil)
		_, err = svc.Clock(ctx, "g1", service.ClockChange{Op: service.ClockAdvance, Value: 120})
		So(err, ShouldBeNil)

		Convey("When a goal is recorded and undone", func() {
			ev, err := svc.RecordEvent(ctx, "g1", model.Event{
				Type:    model.EventGoal,
				Time:    model.DefaultRules().At(1, 100),
				Players: []string{"h1"},
			})
			So(err, ShouldBeNil)
			So(ev.ActorOnIce, ShouldBeTrue)
			view, err := svc.Undo(ctx, "g1")

			Convey("Then the score should follow the event log", func() {
				So(err, ShouldBeNil)
				So(view.Snapshot.Score, ShouldResemble, model.Score{})
				So(view.CanRedo, ShouldBeTrue)
				view, err = svc.Redo(ctx, "g1")
				So(err, ShouldBeNil)
				So(view.Snapshot.Score.Home, ShouldEqual, 1)
			})
		})

		Convey("When a shift is ended at an explicit time", func() {
			secs := 90
			shifts, err := svc.EndShift(ctx, "g1", service.ShiftChange{PlayerID: "h1", Seconds: &secs})

			Convey("Then the shift should close there", func() {
				So(err, ShouldBeNil)
				So(shifts, ShouldHaveLength, 1)
				So(shifts[0].End.Seconds, ShouldEqual, 90)
			})
		})

		Convey("When ending a shift that is not open", func() {
			_, err := svc.EndShift(ctx, "g1", service.ShiftChange{PlayerID: "a1"})

			Convey("Then it should be an invalid transition", func() {
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When an unknown clock operation is requested", func() {
			_, err := svc.Clock(ctx, "g1", service.ClockChange{Op: "warp"})

			Convey("Then it should fail validation", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, service.ErrUnknownClockOp), ShouldBeTrue)
			})
		})

		Convey("When the game is finished", func() {
			view, err := svc.Finish(ctx, "g1")

			Convey("Then open shifts should be closed and the game frozen", func() {
				So(err, ShouldBeNil)
				So(view.Snapshot.Status, ShouldEqual, model.StatusFinal)
				So(view.Snapshot.OnIce, ShouldBeEmpty)
				So(view.Persistence.SavedRevision, ShouldEqual, view.Snapshot.Revision)
				_, err = svc.RecordEvent(ctx, "g1", model.Event{Type: model.EventShot, Time: model.DefaultRules().At(1, 110), Players: []string{"h1"}})
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When the session is exported", func() {
			table, err := svc.Export(ctx, "g1", export.KindAll)

			Convey("Then the shift should be in the table", func() {
				So(err, ShouldBeNil)
				events, shifts := table.Counts()
				So(events, ShouldEqual, 0)
				So(shifts, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Persistence(t *testing.T) {
	Convey("Given a service backed by a SQLite file", t, func() {
		path := filepath.Join(t.TempDir(), "rink.db")
		store, err := repository.OpenSQLite(path)
		So(err, ShouldBeNil)
		ctx := context.Background()

		svc := service.New(service.WithStore(store), service.WithClock(clockwork.NewFakeClock()))
		So(svc.Start(ctx), ShouldBeNil)
		_, _, err = svc.OpenSession(ctx, gameConfig("g1"))
		So(err, ShouldBeNil)
		_, err = svc.Clock(ctx, "g1", service.ClockChange{Op: service.ClockAdvance, Value: 200})
		So(err, ShouldBeNil)
		_, err = svc.RecordEvent(ctx, "g1", model.Event{Type: model.EventGoal, Time: model.DefaultRules().At(1, 150), Players: []string{"a1"}})
		So(err, ShouldBeNil)
		status, err := svc.Save(ctx, "g1")
		So(err, ShouldBeNil)
		So(status.SavedRevision, ShouldEqual, 2)

		Convey("When the service restarts", func() {
			svc.Stop(ctx)
			store, err := repository.OpenSQLite(path)
			So(err, ShouldBeNil)
			svc = service.New(service.WithStore(store), service.WithClock(clockwork.NewFakeClock()))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)

			view, resumed, err := svc.OpenSession(ctx, gameConfig("g1"))

			Convey("Then the session should resume from the autosave", func() {
				So(err, ShouldBeNil)
				So(resumed, ShouldBeTrue)
				So(view.Snapshot.Clock, ShouldEqual, 200)
				So(view.Snapshot.Score.Away, ShouldEqual, 1)
				So(view.Persistence.SavedRevision, ShouldEqual, 2)
			})

			Convey("Then the saved game should be queryable", func() {
				rows, err := svc.Query(ctx, "events", dataaccess.Filter{"game_id": "g1"})
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0]["type"], ShouldEqual, "goal")
			})
		})

		Convey("When the session is closed", func() {
			So(svc.CloseSession(ctx, "g1"), ShouldBeNil)
			svc.Stop(ctx)

			Convey("Then it should no longer be live", func() {
				So(svc.Sessions(), ShouldBeEmpty)
			})
		})
	})
}

func TestService_FinishWithFailingStore(t *testing.T) {
	Convey("Given a live game whose local store starts failing", t, func() {
		store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
		svc := startService(t, service.WithStore(store))
		ctx := context.Background()
		_, _, err := svc.OpenSession(ctx, gameConfig("g1"))
		So(err, ShouldBeNil)
		_, err = svc.StartShift(ctx, "g1", service.ShiftChange{PlayerID: "h1"})
		So(err, ShouldBeNil)
		store.setFail(true)

		Convey("When the game is finished", func() {
			view, err := svc.Finish(ctx, "g1")

			Convey("Then the finish should succeed with the save failure as a warning", func() {
				So(err, ShouldBeNil)
				So(view.Snapshot.Status, ShouldEqual, model.StatusFinal)
				So(view.Snapshot.OpenShifts(), ShouldEqual, 0)
				So(view.Persistence.LastSaveError, ShouldContainSubstring, "disk full")
				So(view.Warnings, ShouldNotBeEmpty)
			})

			Convey("Then an explicit save should succeed once the store recovers", func() {
				store.setFail(false)
				status, err := svc.Save(ctx, "g1")
				So(err, ShouldBeNil)
				So(status.LastSaveError, ShouldBeEmpty)
				So(status.SavedRevision, ShouldEqual, view.Snapshot.Revision)
			})
		})
	})
}

func TestService_Sync(t *testing.T) {
	Convey("Given a service with a remote", t, func() {
		remote := &recordingRemote{}
		svc := startService(t, service.WithRemote(remote))
		ctx := context.Background()
		_, _, err := svc.OpenSession(ctx, gameConfig("g1"))
		So(err, ShouldBeNil)
		_, err = svc.Clock(ctx, "g1", service.ClockChange{Op: service.ClockAdvance, Value: 60})
		So(err, ShouldBeNil)

		Convey("When syncing", func() {
			report, err := svc.Sync(ctx, "g1")

			Convey("Then the full session should be pushed", func() {
				So(err, ShouldBeNil)
				So(report.Revision, ShouldEqual, 1)
				So(remote.pushed, ShouldHaveLength, 1)
				So(remote.pushed[0].Clock, ShouldEqual, 60)
			})
		})

		Convey("When the remote fails", func() {
			remote.err = errors.New("network down")
			_, err := svc.Sync(ctx, "g1")

			Convey("Then a sync error should be returned and surfaced as a warning", func() {
				So(errors.Is(err, autosave.ErrSync), ShouldBeTrue)
				view, _ := svc.View(ctx, "g1")
				So(view.Warnings, ShouldHaveLength, 1)
				So(view.Persistence.LastSyncError, ShouldContainSubstring, "network down")
			})
		})
	})

	Convey("Given a service without a remote", t, func() {
		svc := startService(t)
		ctx := context.Background()
		_, _, err := svc.OpenSession(ctx, gameConfig("g1"))
		So(err, ShouldBeNil)

		Convey("When syncing", func() {
			_, err := svc.Sync(ctx, "g1")

			Convey("Then sync should be reported as disabled", func() {
				So(errors.Is(err, autosave.ErrSyncDisabled), ShouldBeTrue)
			})
		})
	})
}
