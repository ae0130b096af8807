package model

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEventType(t *testing.T) {
	Convey("Given event type names", t, func() {
		Convey("When parsing a known type", func() {
			typ, err := ParseEventType("zone_entry")

			Convey("Then it should be accepted", func() {
				So(err, ShouldBeNil)
				So(typ, ShouldEqual, EventZoneEntry)
				So(typ.RequiresPlayer(), ShouldBeTrue)
			})
		})

		Convey("When parsing an unknown type", func() {
			_, err := ParseEventType("fight")

			Convey("Then a validation error should be returned", func() {
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
			})
		})

		Convey("Then stoppages should not need a player", func() {
			So(EventStoppage.RequiresPlayer(), ShouldBeFalse)
		})
	})
}

func TestPoint(t *testing.T) {
	Convey("Given rink locations", t, func() {
		So(Point{X: 89, Y: 0}.OnRink(), ShouldBeTrue)
		So(Point{X: 100, Y: 42.5}.OnRink(), ShouldBeTrue)
		So(Point{X: 101, Y: 0}.OnRink(), ShouldBeFalse)
		So(Point{X: 0, Y: -43}.OnRink(), ShouldBeFalse)
		So(Point{X: 60, Y: -10}.Flip(), ShouldResemble, Point{X: -60, Y: 10})
	})
}

func TestEventClone(t *testing.T) {
	Convey("Given an event with nested data", t, func() {
		v := 12.5
		ev := Event{
			ID:        "e1",
			Players:   []string{"a", "b"},
			Location:  &Point{X: 1, Y: 2},
			OnIce:     []string{"a"},
			VideoTime: &v,
		}

		Convey("When cloning it", func() {
			c := ev.Clone()
			c.Players[0] = "z"
			c.Location.X = 99
			*c.VideoTime = 0
			c.OnIce[0] = "z"

			Convey("Then the original should be untouched", func() {
				So(ev.Players[0], ShouldEqual, "a")
				So(ev.Location.X, ShouldEqual, 1)
				So(*ev.VideoTime, ShouldEqual, 12.5)
				So(ev.OnIce[0], ShouldEqual, "a")
				So(ev.Actor(), ShouldEqual, "a")
			})
		})
	})
}

func TestEventOrdering(t *testing.T) {
	Convey("Given events at the same instant", t, func() {
		r := DefaultRules()
		a := Event{Seq: 2, Time: r.At(1, 300)}
		b := Event{Seq: 1, Time: r.At(1, 300)}
		c := Event{Seq: 0, Time: r.At(2, 0)}

		Convey("Then insertion sequence should break the tie", func() {
			So(EventLess(b, a), ShouldBeTrue)
			So(EventLess(a, b), ShouldBeFalse)
		})

		Convey("Then game time should dominate sequence", func() {
			So(EventLess(a, c), ShouldBeTrue)
		})
	})
}

func TestShiftCovers(t *testing.T) {
	Convey("Given a closed shift", t, func() {
		r := DefaultRules()
		end := r.At(1, 60)
		sh := Shift{Start: r.At(1, 10), End: &end}

		Convey("Then it should cover the half-open interval", func() {
			So(sh.Covers(r.At(1, 9)), ShouldBeFalse)
			So(sh.Covers(r.At(1, 10)), ShouldBeTrue)
			So(sh.Covers(r.At(1, 59)), ShouldBeTrue)
			So(sh.Covers(r.At(1, 60)), ShouldBeFalse)
			So(sh.Length(r.At(1, 1000)), ShouldEqual, 50)
			So(sh.Open(), ShouldBeFalse)
		})
	})

	Convey("Given an open shift", t, func() {
		r := DefaultRules()
		sh := Shift{Start: r.At(1, 10)}

		Convey("Then it should run up to now", func() {
			So(sh.Open(), ShouldBeTrue)
			So(sh.Covers(r.At(2, 5)), ShouldBeTrue)
			So(sh.Length(r.At(1, 40)), ShouldEqual, 30)
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given a score", t, func() {
		s := Score{}.Add(Home, 1).Add(Away, 2).Add(Home, -1)
		So(s, ShouldResemble, Score{Home: 0, Away: 2})
		So(Home.Opponent(), ShouldEqual, Away)
		So(Side("x").Valid(), ShouldBeFalse)
	})
}
