package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/rinktrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var savedAt = time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)

func snapshot(gameID string, rev uint64) model.Snapshot {
	return model.Snapshot{
		GameID:   gameID,
		Home:     model.Team{ID: "HOM"},
		Away:     model.Team{ID: "AWY"},
		Rules:    model.DefaultRules(),
		Period:   1,
		Clock:    int(rev) * 10,
		Score:    model.Score{Home: int(rev)},
		Status:   model.StatusLive,
		Revision: rev,
		Events: []model.Event{
			{ID: fmt.Sprintf("e%d", rev), Type: model.EventShot, Side: model.Home, Players: []string{"h1"}},
		},
		VideoAnchors: map[int]float64{1: 12.5},
	}
}

type storeFactory func(t *testing.T, opts ...Option) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(_ *testing.T, opts ...Option) Store {
			return NewMemoryStore(opts...)
		},
		"sqlite": func(t *testing.T, opts ...Option) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), opts...)
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, open := range factories() {
		Convey("Given a "+name+" snapshot store", t, func() {
			store := open(t, WithNow(func() time.Time { return savedAt }), WithHistoryLimit(3))

			Convey("When nothing has been saved", func() {
				_, err := store.Latest(ctx, "g1")

				Convey("Then Latest should report not found", func() {
					So(errors.Is(err, ErrNotFound), ShouldBeTrue)
					hist, err := store.History(ctx, "g1")
					So(err, ShouldBeNil)
					So(hist, ShouldBeEmpty)
				})
			})

			Convey("When three revisions are saved", func() {
				for rev := uint64(1); rev <= 3; rev++ {
					So(store.Save(ctx, snapshot("g1", rev)), ShouldBeNil)
				}

				Convey("Then Latest should return the newest", func() {
					snap, err := store.Latest(ctx, "g1")
					So(err, ShouldBeNil)
					So(snap.Revision, ShouldEqual, 3)
					So(snap.Score, ShouldResemble, model.Score{Home: 3})
					So(snap.Events[0].ID, ShouldEqual, "e3")
					So(snap.VideoAnchors, ShouldResemble, map[int]float64{1: 12.5})
				})

				Convey("Then every revision should be in the history", func() {
					hist, err := store.History(ctx, "g1")
					So(err, ShouldBeNil)
					So(len(hist), ShouldEqual, 3)
					for i, rec := range hist {
						So(rec.Revision, ShouldEqual, uint64(i+1))
						So(rec.Snapshot.Clock, ShouldEqual, (i+1)*10)
						So(rec.SavedAt.Equal(savedAt), ShouldBeTrue)
					}
				})

				Convey("Then saving the same revision again should be a no-op", func() {
					again := snapshot("g1", 3)
					again.Clock = 999
					So(store.Save(ctx, again), ShouldBeNil)
					snap, _ := store.Latest(ctx, "g1")
					So(snap.Clock, ShouldEqual, 30)
				})

				Convey("Then saving an older revision should be refused", func() {
					err := store.Save(ctx, snapshot("g1", 2))
					So(errors.Is(err, ErrStaleRevision), ShouldBeTrue)
				})

				Convey("Then history beyond the limit should be pruned", func() {
					So(store.Save(ctx, snapshot("g1", 4)), ShouldBeNil)
					hist, err := store.History(ctx, "g1")
					So(err, ShouldBeNil)
					So(len(hist), ShouldEqual, 3)
					So(hist[0].Revision, ShouldEqual, 2)
					So(hist[2].Revision, ShouldEqual, 4)
				})
			})

			Convey("When several games are saved", func() {
				So(store.Save(ctx, snapshot("g2", 1)), ShouldBeNil)
				So(store.Save(ctx, snapshot("g1", 5)), ShouldBeNil)
				final := snapshot("g2", 2)
				final.Status = model.StatusFinal
				So(store.Save(ctx, final), ShouldBeNil)

				Convey("Then Games should summarize the latest of each", func() {
					games, err := store.Games(ctx)
					So(err, ShouldBeNil)
					So(games, ShouldResemble, []Summary{
						{GameID: "g1", Revision: 5, Status: model.StatusLive, SavedAt: savedAt},
						{GameID: "g2", Revision: 2, Status: model.StatusFinal, SavedAt: savedAt},
					})
				})

				Convey("Then deleting one game should leave the other", func() {
					So(store.Delete(ctx, "g2"), ShouldBeNil)
					_, err := store.Latest(ctx, "g2")
					So(errors.Is(err, ErrNotFound), ShouldBeTrue)
					_, err = store.Latest(ctx, "g1")
					So(err, ShouldBeNil)
				})
			})

			Convey("When the snapshot has no game id", func() {
				err := store.Save(ctx, model.Snapshot{Revision: 1})

				Convey("Then it should be rejected", func() {
					So(errors.Is(err, ErrInvalidSnapshot), ShouldBeTrue)
				})
			})

			Convey("When the store is closed", func() {
				So(store.Close(), ShouldBeNil)
				err := store.Save(ctx, snapshot("g1", 1))

				Convey("Then writes should fail", func() {
					So(err, ShouldNotBeNil)
				})
			})
		})
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	Convey("Given a memory store holding a snapshot", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		snap := snapshot("g1", 1)
		So(store.Save(ctx, snap), ShouldBeNil)

		Convey("When the caller mutates its copy", func() {
			snap.Events[0].Players[0] = "changed"
			got, err := store.Latest(ctx, "g1")

			Convey("Then the stored copy should be unaffected", func() {
				So(err, ShouldBeNil)
				So(got.Events[0].Players[0], ShouldEqual, "h1")
			})
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)
			_, err := store.Latest(ctx, "g1")
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(store.Save(cctx, snapshot("g1", 2)), context.Canceled), ShouldBeTrue)
		})
	})
}

func TestSQLiteStoreReopen(t *testing.T) {
	Convey("Given a SQLite file with saved snapshots", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "snapshots.db")
		store, err := OpenSQLite(path)
		So(err, ShouldBeNil)
		So(store.Save(ctx, snapshot("g1", 7)), ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			reopened, err := OpenSQLite(path)
			So(err, ShouldBeNil)
			defer reopened.Close()
			snap, err := reopened.Latest(ctx, "g1")

			Convey("Then the snapshot should survive", func() {
				So(err, ShouldBeNil)
				So(snap.Revision, ShouldEqual, 7)
			})
		})

		Convey("When no path is given", func() {
			_, err := OpenSQLite("  ")
			So(err, ShouldNotBeNil)
		})
	})
}
