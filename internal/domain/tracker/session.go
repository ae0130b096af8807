// Package tracker implements the live game tracking core: the session state
// store and the clock, shift and event components that operate on it.
//
// All components are bound to one explicitly owned *Session. Mutations are
// synchronous and atomic: an operation either fully applies, bumps the
// session revision and notifies observers, or returns an error with the
// session untouched. The package does no locking; callers serialize access.
package tracker

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
)

// Observer is notified with a fresh snapshot after every committed mutation.
type Observer interface {
	OnStateChange(snap model.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(model.Snapshot)

// OnStateChange calls f(snap).
func (f ObserverFunc) OnStateChange(snap model.Snapshot) { f(snap) }

// Config describes a game to track.
type Config struct {
	GameID                string         `json:"game_id"`
	Home                  model.Team     `json:"home"`
	Away                  model.Team     `json:"away"`
	Rules                 model.Rules    `json:"rules"`
	HomeAttacksRightFirst bool           `json:"home_attacks_right_first"`
	Roster                []model.Player `json:"roster"`
}

// Session is the single owned aggregate all tracker components mutate.
type Session struct {
	gameID         string
	home, away     model.Team
	rules          model.Rules
	homeRightFirst bool
	roster         *Roster

	period  int
	clock   int
	running bool
	score   model.Score

	open   map[string]*model.Shift  // player -> in-progress shift
	closed map[string][]model.Shift // player -> closed shifts ordered by start

	events  []model.Event // ordered by model.EventLess
	nextSeq uint64

	anchors map[int]float64 // period -> video second at 0:00

	status    model.Status
	revision  uint64
	updatedAt time.Time

	observers []Observer
	cfg       settings
	logger    logger.Logger
}

// NewSession validates cfg and creates a live session at P1 0:00.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	const op = "tracker.new_session"
	st := defaultSettings()
	for _, opt := range opts {
		opt(&st)
	}

	cfg.GameID = strings.TrimSpace(cfg.GameID)
	if cfg.GameID == "" {
		return nil, model.NewKind(op, model.ErrValidation, "game id is required")
	}
	if cfg.Home.ID == "" || cfg.Away.ID == "" {
		return nil, model.NewKind(op, model.ErrValidation, "both team ids are required")
	}
	if cfg.Home.ID == cfg.Away.ID {
		return nil, model.NewKind(op, model.ErrValidation, "home and away must differ")
	}
	rules := cfg.Rules.Normalize()
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	roster, err := newRoster(cfg.Home, cfg.Away, cfg.Roster)
	if err != nil {
		return nil, err
	}

	s := &Session{
		gameID:         cfg.GameID,
		home:           cfg.Home,
		away:           cfg.Away,
		rules:          rules,
		homeRightFirst: cfg.HomeAttacksRightFirst,
		roster:         roster,
		period:         1,
		open:           make(map[string]*model.Shift),
		closed:         make(map[string][]model.Shift),
		nextSeq:        1,
		anchors:        make(map[int]float64),
		status:         model.StatusLive,
		cfg:            st,
	}
	s.updatedAt = st.now()
	s.logger = st.logger
	if s.logger == nil {
		s.logger = logger.Get().Named("tracker")
	}
	return s, nil
}

// RestoreSession rebuilds a session from a snapshot, e.g. a local autosave.
func RestoreSession(snap model.Snapshot, opts ...Option) (*Session, error) {
	const op = "tracker.restore"
	s, err := NewSession(Config{
		GameID:                snap.GameID,
		Home:                  snap.Home,
		Away:                  snap.Away,
		Rules:                 snap.Rules,
		HomeAttacksRightFirst: snap.HomeAttacksRightFirst,
		Roster:                snap.Roster,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !s.rules.ValidPeriod(snap.Period) {
		return nil, model.NewKindf(op, model.ErrOutOfRange, "period %d", snap.Period)
	}
	if snap.Clock < 0 || snap.Clock > s.rules.Length(snap.Period) {
		return nil, model.NewKindf(op, model.ErrOutOfRange, "clock %d", snap.Clock)
	}
	s.period, s.clock, s.running = snap.Period, snap.Clock, snap.Running

	for _, sh := range snap.Shifts {
		if _, ok := s.roster.Player(sh.PlayerID); !ok {
			return nil, model.NewKindf(op, model.ErrValidation, "shift %s references unknown player %q", sh.ID, sh.PlayerID)
		}
		sh.Start = s.rules.At(sh.Start.Period, sh.Start.Seconds)
		if sh.End != nil {
			end := s.rules.At(sh.End.Period, sh.End.Seconds)
			sh.End = &end
			s.closed[sh.PlayerID] = append(s.closed[sh.PlayerID], sh)
			continue
		}
		if _, dup := s.open[sh.PlayerID]; dup {
			return nil, model.NewKindf(op, model.ErrInvalidTransition, "player %q has two open shifts", sh.PlayerID)
		}
		open := sh
		s.open[sh.PlayerID] = &open
	}
	for id := range s.closed {
		sort.SliceStable(s.closed[id], func(i, j int) bool {
			return s.closed[id][i].Start.Elapsed < s.closed[id][j].Start.Elapsed
		})
	}

	var score model.Score
	for _, ev := range snap.Events {
		ev = ev.Clone()
		ev.Time = s.rules.At(ev.Time.Period, ev.Time.Seconds)
		if ev.Seq >= s.nextSeq {
			s.nextSeq = ev.Seq + 1
		}
		if ev.IsGoal() {
			score = score.Add(ev.Side, 1)
		}
		s.events = append(s.events, ev)
	}
	sort.SliceStable(s.events, func(i, j int) bool { return model.EventLess(s.events[i], s.events[j]) })
	// Score is derived from the goal events so a restored session cannot
	// disagree with its own log.
	s.score = score

	maps.Copy(s.anchors, snap.VideoAnchors)
	if snap.Status == model.StatusFinal {
		s.status = model.StatusFinal
	}
	s.revision = snap.Revision
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s, nil
}

// Subscribe registers an observer for committed mutations.
func (s *Session) Subscribe(o Observer) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// GameID returns the session's game identifier.
func (s *Session) GameID() string { return s.gameID }

// Rules returns the period rules of the game.
func (s *Session) Rules() model.Rules { return s.rules }

// Roster returns the game roster.
func (s *Session) Roster() *Roster { return s.roster }

// Score returns the running score.
func (s *Session) Score() model.Score { return s.score }

// Status returns the lifecycle state.
func (s *Session) Status() model.Status { return s.status }

// Revision returns the number of committed mutations.
func (s *Session) Revision() uint64 { return s.revision }

// Team returns the team playing on side.
func (s *Session) Team(side model.Side) model.Team {
	if side == model.Home {
		return s.home
	}
	return s.away
}

// SideOf resolves a team id to its side.
func (s *Session) SideOf(teamID string) (model.Side, bool) {
	switch teamID {
	case s.home.ID:
		return model.Home, true
	case s.away.ID:
		return model.Away, true
	}
	return "", false
}

// now returns the current game time.
func (s *Session) now() model.GameTime {
	return s.rules.At(s.period, s.clock)
}

// attacksRight reports whether side attacks +x during period p. Teams
// change ends every period, overtime included.
func (s *Session) attacksRight(side model.Side, p int) bool {
	right := s.homeRightFirst
	if side == model.Away {
		right = !right
	}
	if p%2 == 0 {
		right = !right
	}
	return right
}

// SetVideoAnchor records the video position of period p's opening faceoff.
func (s *Session) SetVideoAnchor(p int, videoSeconds float64) error {
	const op = "tracker.set_video_anchor"
	if err := s.ensureLive(op); err != nil {
		return err
	}
	if !s.rules.ValidPeriod(p) {
		return model.NewKindf(op, model.ErrOutOfRange, "period %d", p)
	}
	if videoSeconds < 0 {
		return model.NewKind(op, model.ErrValidation, "video offset must not be negative")
	}
	s.anchors[p] = videoSeconds
	s.commit()
	return nil
}

// videoTime derives the video timestamp of t, if period t.Period is anchored.
func (s *Session) videoTime(t model.GameTime) *float64 {
	base, ok := s.anchors[t.Period]
	if !ok {
		return nil
	}
	v := base + float64(t.Seconds)
	return &v
}

func (s *Session) ensureLive(op string) error {
	if s.status != model.StatusLive {
		return model.NewKind(op, model.ErrInvalidTransition, "session is final")
	}
	return nil
}

// commit stamps a completed mutation and notifies observers.
func (s *Session) commit() {
	s.revision++
	s.updatedAt = s.cfg.now()
	if len(s.observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, o := range s.observers {
		o.OnStateChange(snap)
	}
}

// Snapshot returns a deep copy of the full session state.
func (s *Session) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		GameID:                s.gameID,
		Home:                  s.home,
		Away:                  s.away,
		Rules:                 s.rules,
		Period:                s.period,
		Clock:                 s.clock,
		Running:               s.running,
		Score:                 s.score,
		HomeAttacksRightFirst: s.homeRightFirst,
		Roster:                s.roster.Players(),
		OnIce:                 s.onIceIDs(),
		Shifts:                s.allShifts(),
		Events:                make([]model.Event, len(s.events)),
		Status:                s.status,
		Revision:              s.revision,
		UpdatedAt:             s.updatedAt,
	}
	for i, ev := range s.events {
		snap.Events[i] = ev.Clone()
	}
	if len(s.anchors) > 0 {
		snap.VideoAnchors = maps.Clone(s.anchors)
	}
	return snap
}

func (s *Session) onIceIDs() []string {
	ids := make([]string, 0, len(s.open))
	for _, p := range s.roster.Players() {
		if _, ok := s.open[p.ID]; ok {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s *Session) allShifts() []model.Shift {
	var out []model.Shift
	for _, p := range s.roster.Players() {
		for _, sh := range s.closed[p.ID] {
			out = append(out, copyShift(sh))
		}
		if sh, ok := s.open[p.ID]; ok {
			out = append(out, copyShift(*sh))
		}
	}
	slices.SortStableFunc(out, func(a, b model.Shift) int { return a.Start.Elapsed - b.Start.Elapsed })
	return out
}

func copyShift(sh model.Shift) model.Shift {
	if sh.End != nil {
		end := *sh.End
		sh.End = &end
	}
	return sh
}
