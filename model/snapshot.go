package model

import (
	"math"
	"time"
)

// Vec3 is a world-space position or direction.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Dist returns the straight-line distance between two points.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// Normalize returns the unit vector in v's direction, or the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Snapshot is one perception frame for a single bot. The perception side
// sends one per bot per tick; the decision core treats it as read-only.
type Snapshot struct {
	Tick       int         `json:"tick"`
	TimeMs     int64       `json:"timeMs"` // simulation clock since match start
	Self       Self        `json:"self"`
	Entities   []Entity    `json:"entities"`
	Objectives []Objective `json:"objectives"`
	// Facts are extra named conditions asserted directly by the game side,
	// e.g. "heard_noise". Unknown names are ignored.
	Facts []string `json:"facts"`
}

// Now returns the simulation clock as a duration.
func (s *Snapshot) Now() time.Duration {
	return time.Duration(s.TimeMs) * time.Millisecond
}

// Self is the controlled bot's public state.
type Self struct {
	ID        int            `json:"id"`
	Class     string         `json:"class"`
	Team      string         `json:"team"`
	Pos       Vec3           `json:"pos"`
	Facing    Vec3           `json:"facing"`
	Health    int            `json:"health"`
	MaxHealth int            `json:"maxHealth"`
	Alive     bool           `json:"alive"`
	Weapon    string         `json:"weapon"`             // active slot
	Slots     []string       `json:"slots"`              // equippable slots
	Resources map[string]int `json:"resources,omitempty"` // e.g. "ammo", "metal", "charge"
	Damage    int            `json:"damage"`             // damage taken since last frame
}

// HealthFrac returns health as a fraction of max, 0 when max is unknown.
func (s Self) HealthFrac() float64 {
	if s.MaxHealth <= 0 {
		return 0
	}
	return float64(s.Health) / float64(s.MaxHealth)
}

// Resource returns the named resource count, 0 if absent.
func (s Self) Resource(name string) int {
	return s.Resources[name]
}

// HasSlot reports whether the bot can equip the given slot.
func (s Self) HasSlot(slot string) bool {
	for _, sl := range s.Slots {
		if sl == slot {
			return true
		}
	}
	return false
}

// Entity is another actor the bot perceives: players, sentries, pickups.
type Entity struct {
	ID        int     `json:"id"`
	Kind      string  `json:"kind"` // "player", "sentry", "health_pack", ...
	Class     string  `json:"class"`
	Team      string  `json:"team"`
	Pos       Vec3    `json:"pos"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"maxHealth"`
	Visible   bool    `json:"visible"`
	Owner     int     `json:"owner,omitempty"` // owning player for buildings
	Threat    float64 `json:"threat"`          // perception's danger estimate, 0..1
}

func (e Entity) TypeName() string { return e.Kind }

// HealthFrac returns health as a fraction of max, 1 when max is unknown.
func (e Entity) HealthFrac() float64 {
	if e.MaxHealth <= 0 {
		return 1
	}
	return float64(e.Health) / float64(e.MaxHealth)
}

// Objective is a capturable or defendable point of interest.
type Objective struct {
	ID        int     `json:"id"`
	Pos       Vec3    `json:"pos"`
	Owner     string  `json:"owner"`
	Progress  float64 `json:"progress"` // capture progress, 0..1
	Contested bool    `json:"contested"`
	Locked    bool    `json:"locked"`
}

// Entity looks up a perceived entity by id.
func (s *Snapshot) Entity(id int) (Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Objective looks up an objective by id.
func (s *Snapshot) Objective(id int) (Objective, bool) {
	for _, o := range s.Objectives {
		if o.ID == id {
			return o, true
		}
	}
	return Objective{}, false
}

// Enemies returns visible hostile players and buildings.
func (s *Snapshot) Enemies() []Entity {
	var out []Entity
	for _, e := range s.Entities {
		if e.Team != s.Self.Team && e.Team != "" && e.Visible && e.Health > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Allies returns visible friendly players other than self.
func (s *Snapshot) Allies() []Entity {
	var out []Entity
	for _, e := range s.Entities {
		if e.Team == s.Self.Team && e.ID != s.Self.ID && e.Kind == KindPlayer && e.Health > 0 {
			out = append(out, e)
		}
	}
	return out
}

// NearestEnemy returns the closest visible enemy, or nil.
func (s *Snapshot) NearestEnemy() *Entity {
	return nearest(s.Self.Pos, s.Enemies())
}

// Nearest returns the closest entity of the given kind and team, or nil.
// An empty team matches any team.
func (s *Snapshot) Nearest(kind, team string) *Entity {
	var match []Entity
	for _, e := range s.Entities {
		if e.Kind == kind && (team == "" || e.Team == team) {
			match = append(match, e)
		}
	}
	return nearest(s.Self.Pos, match)
}

func nearest(from Vec3, es []Entity) *Entity {
	var best *Entity
	bestDist := math.MaxFloat64
	for i := range es {
		d := from.Dist(es[i].Pos)
		if d < bestDist {
			bestDist = d
			best = &es[i]
		}
	}
	return best
}

// Entity kinds shared with the game side.
const (
	KindPlayer     = "player"
	KindSentry     = "sentry"
	KindHealthPack = "health_pack"
	KindAmmoPack   = "ammo_pack"
	KindCover      = "cover"
)
