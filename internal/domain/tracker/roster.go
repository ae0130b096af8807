package tracker

import (
	"strings"

	"github.com/okian/rinktrack/internal/domain/model"
)

// Roster is the immutable set of players dressed for a game.
type Roster struct {
	order []string
	byID  map[string]model.Player
}

// newRoster validates players against the two teams and indexes them.
// Missing Side or TeamID fields are derived from each other.
func newRoster(home, away model.Team, players []model.Player) (*Roster, error) {
	const op = "tracker.roster"
	r := &Roster{byID: make(map[string]model.Player, len(players))}
	for _, p := range players {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, model.NewKind(op, model.ErrValidation, "player id is required")
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, model.NewKindf(op, model.ErrValidation, "duplicate player %q", p.ID)
		}
		switch {
		case p.Side == "" && p.TeamID == home.ID:
			p.Side = model.Home
		case p.Side == "" && p.TeamID == away.ID:
			p.Side = model.Away
		}
		if !p.Side.Valid() {
			return nil, model.NewKindf(op, model.ErrValidation, "player %q has no team", p.ID)
		}
		want := home.ID
		if p.Side == model.Away {
			want = away.ID
		}
		if p.TeamID == "" {
			p.TeamID = want
		}
		if p.TeamID != want {
			return nil, model.NewKindf(op, model.ErrValidation, "player %q team %q does not match side %s", p.ID, p.TeamID, p.Side)
		}
		r.order = append(r.order, p.ID)
		r.byID[p.ID] = p
	}
	return r, nil
}

// Player looks up a player by id.
func (r *Roster) Player(id string) (model.Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Players returns all players in roster order.
func (r *Roster) Players() []model.Player {
	out := make([]model.Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Side returns the players of one team in roster order.
func (r *Roster) Side(side model.Side) []model.Player {
	var out []model.Player
	for _, id := range r.order {
		if p := r.byID[id]; p.Side == side {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of players on the roster.
func (r *Roster) Len() int { return len(r.order) }
