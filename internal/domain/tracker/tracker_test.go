package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/rinktrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	homeTeam = model.Team{ID: "HOM", Name: "Harbor Hawks"}
	awayTeam = model.Team{ID: "AWY", Name: "Valley Wolves"}
)

func testConfig() Config {
	return Config{
		GameID:                "game-1",
		Home:                  homeTeam,
		Away:                  awayTeam,
		Rules:                 model.DefaultRules(),
		HomeAttacksRightFirst: true,
		Roster: []model.Player{
			{ID: "h1", Name: "Ada Home", TeamID: "HOM", Jersey: 9},
			{ID: "h2", Name: "Ben Home", TeamID: "HOM", Jersey: 17},
			{ID: "h3", Name: "Cal Home", Side: model.Home, Jersey: 30},
			{ID: "a1", Name: "Dee Away", TeamID: "AWY", Jersey: 4},
			{ID: "a2", Name: "Eli Away", Side: model.Away, Jersey: 88},
		},
	}
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func fixedNow() Option {
	return WithNow(func() time.Time { return time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC) })
}

func newTestTracker(t *testing.T, mutate ...func(*Config)) *Tracker {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	tr, err := New(cfg, sequentialIDs(), fixedNow())
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tr
}

func at(p, s int) model.GameTime { return model.GameTime{Period: p, Seconds: s} }

func TestFinish(t *testing.T) {
	Convey("Given a live game with players on ice", t, func() {
		tr := newTestTracker(t)
		So(tr.StartShift("h1", at(1, 0)), ShouldBeNil)
		So(tr.StartShift("a1", at(1, 0)), ShouldBeNil)
		So(tr.Advance(600), ShouldBeNil)
		So(tr.ToggleClock(), ShouldBeNil)

		Convey("When the game is finished", func() {
			So(tr.Finish(), ShouldBeNil)
			snap := tr.Snapshot()

			Convey("Then every shift should be force-closed at the current time", func() {
				So(snap.OnIce, ShouldBeEmpty)
				So(snap.OpenShifts(), ShouldEqual, 0)
				for _, sh := range snap.Shifts {
					So(sh.End.Seconds, ShouldEqual, 600)
				}
				So(snap.Status, ShouldEqual, model.StatusFinal)
				So(snap.Running, ShouldBeFalse)
			})

			Convey("Then further mutations should be rejected", func() {
				_, err := tr.Record(model.Event{Type: model.EventShot, Time: at(1, 600), Players: []string{"h1"}})
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
				So(errors.Is(tr.StartShift("h2", at(1, 600)), model.ErrInvalidTransition), ShouldBeTrue)
				So(errors.Is(tr.Advance(1), model.ErrInvalidTransition), ShouldBeTrue)
				So(errors.Is(tr.Undo(), model.ErrInvalidTransition), ShouldBeTrue)
				So(errors.Is(tr.Finish(), model.ErrInvalidTransition), ShouldBeTrue)
				So(tr.Snapshot().Revision, ShouldEqual, snap.Revision)
			})
		})
	})
}

func TestRestore(t *testing.T) {
	Convey("Given a tracked game", t, func() {
		tr := newTestTracker(t)
		So(tr.StartShift("h1", at(1, 0)), ShouldBeNil)
		So(tr.Advance(305), ShouldBeNil)
		_, err := tr.Record(model.Event{Type: model.EventGoal, Time: at(1, 305), Players: []string{"h1"}})
		So(err, ShouldBeNil)
		So(tr.EndShift("h1", at(1, 305)), ShouldBeNil)
		So(tr.StartShift("h2", at(1, 305)), ShouldBeNil)
		So(tr.Session.SetVideoAnchor(1, 42), ShouldBeNil)
		snap := tr.Snapshot()

		Convey("When restoring from its snapshot", func() {
			restored, err := Restore(snap, sequentialIDs())

			Convey("Then the state should round-trip", func() {
				So(err, ShouldBeNil)
				again := restored.Snapshot()
				So(again.Score, ShouldResemble, snap.Score)
				So(again.Events, ShouldResemble, snap.Events)
				So(again.Shifts, ShouldResemble, snap.Shifts)
				So(again.OnIce, ShouldResemble, []string{"h2"})
				So(again.Revision, ShouldEqual, snap.Revision)
				So(again.VideoAnchors, ShouldResemble, snap.VideoAnchors)
				So(restored.Now(), ShouldResemble, tr.Now())
			})

			Convey("Then new events should get fresh sequence numbers", func() {
				_, err := restored.Record(model.Event{Type: model.EventShot, Time: at(1, 305), Players: []string{"h2"}})
				So(err, ShouldBeNil)
				evs := restored.Snapshot().Events
				So(evs[len(evs)-1].Seq, ShouldBeGreaterThan, snap.Events[0].Seq)
			})

			Convey("Then undo history should start empty", func() {
				So(restored.Log.CanUndo(), ShouldBeFalse)
			})
		})

		Convey("When the snapshot references an unknown player", func() {
			snap.Shifts = append(snap.Shifts, model.Shift{ID: "x", PlayerID: "ghost", Start: at(1, 0)})
			_, err := Restore(snap)

			Convey("Then restore should fail validation", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the snapshot's clock is past the period", func() {
			snap.Clock = 5000
			_, err := Restore(snap)

			Convey("Then restore should fail out of range", func() {
				So(errors.Is(err, model.ErrOutOfRange), ShouldBeTrue)
			})
		})
	})
}
