// Package export flattens a session snapshot into one table with a row
// per event and a row per shift.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/rinktrack/internal/domain/model"
)

// Kind selects which rows a table contains.
type Kind string

const (
	KindEvents Kind = "events"
	KindShifts Kind = "shifts"
	KindAll    Kind = "all"
)

// Row kinds in the first column.
const (
	RowEvent = "event"
	RowShift = "shift"
)

var ErrUnknownKind = errors.New("unknown export kind")

// Header is the column layout shared by every export.
var Header = []string{
	"kind", "game_id", "id", "period", "period_label", "clock", "elapsed",
	"end_period", "end_clock", "length", "type", "side", "team_id",
	"player_id", "players", "x", "y", "video_time", "highlight",
	"actor_on_ice", "on_ice", "detail",
}

// Table is a flat export.
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseKind converts s into a Kind; empty means all.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "":
		return KindAll, nil
	case KindEvents, KindShifts, KindAll:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Build flattens snap. Rows are ordered by game time; at the same
// instant events come before shifts.
func Build(snap model.Snapshot, kind Kind) (Table, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Table{}, err
	}
	type keyed struct {
		at    int
		order int
		row   []string
	}
	var rows []keyed
	if kind != KindShifts {
		for i, ev := range snap.Events {
			rows = append(rows, keyed{at: ev.Time.Elapsed, order: i, row: eventRow(snap, ev)})
		}
	}
	if kind != KindEvents {
		now := snap.Now()
		for i, sh := range snap.Shifts {
			rows = append(rows, keyed{at: sh.Start.Elapsed, order: len(snap.Events) + i, row: shiftRow(snap, sh, now)})
		}
	}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		if a.at != b.at {
			return a.at - b.at
		}
		return a.order - b.order
	})

	t := Table{Header: slices.Clone(Header), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.row)
	}
	return t, nil
}

func eventRow(snap model.Snapshot, ev model.Event) []string {
	x, y := "", ""
	if ev.Location != nil {
		x, y = formatFloat(ev.Location.X), formatFloat(ev.Location.Y)
	}
	video := ""
	if ev.VideoTime != nil {
		video = formatFloat(*ev.VideoTime)
	}
	return []string{
		RowEvent, snap.GameID, ev.ID,
		strconv.Itoa(ev.Time.Period), snap.Rules.Label(ev.Time.Period), ev.Time.Clock(), strconv.Itoa(ev.Time.Elapsed),
		"", "", "",
		string(ev.Type), string(ev.Side), ev.TeamID,
		ev.Actor(), strings.Join(ev.Players, ";"),
		x, y, video,
		strconv.FormatBool(ev.Highlight), strconv.FormatBool(ev.ActorOnIce),
		strings.Join(ev.OnIce, ";"), ev.Detail,
	}
}

func shiftRow(snap model.Snapshot, sh model.Shift, now model.GameTime) []string {
	endPeriod, endClock := "", ""
	if sh.End != nil {
		endPeriod, endClock = strconv.Itoa(sh.End.Period), sh.End.Clock()
	}
	team := snap.Home.ID
	if sh.Side == model.Away {
		team = snap.Away.ID
	}
	return []string{
		RowShift, snap.GameID, sh.ID,
		strconv.Itoa(sh.Start.Period), snap.Rules.Label(sh.Start.Period), sh.Start.Clock(), strconv.Itoa(sh.Start.Elapsed),
		endPeriod, endClock, strconv.Itoa(sh.Length(now)),
		"", string(sh.Side), team,
		sh.PlayerID, sh.PlayerID,
		"", "", "",
		"", "",
		"", "",
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCSV writes t as CSV with a header line.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader) (Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, errors.New("read csv: missing header")
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}

// Counts reports how many event and shift rows t holds.
func (t Table) Counts() (events, shifts int) {
	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		switch row[0] {
		case RowEvent:
			events++
		case RowShift:
			shifts++
		}
	}
	return events, shifts
}
