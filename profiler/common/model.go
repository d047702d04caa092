package common

// Frame aggregates every call observed for one label. Subs holds the calls made while this label
// was the active parent; they are accumulated independently of the root-level frames.
type Frame struct {
	Calls int64    `json:"calls"`
	Time  float64  `json:"time"`
	OKs   int64    `json:"oks,omitempty"`
	NOKs  int64    `json:"noks,omitempty"`
	Subs  FrameMap `json:"subs"`
}

type FrameMap map[string]*Frame

// Ensure returns the frame for label, creating an empty one first if needed.
func (m FrameMap) Ensure(label string) *Frame {
	f, ok := m[label]
	if !ok {
		f = &Frame{Subs: FrameMap{}}
		m[label] = f
	}
	if f.Subs == nil {
		f.Subs = FrameMap{}
	}
	return f
}

// Session is the persisted state of one profiling run. DisableTick is 0 for an indefinite session.
type Session struct {
	Type        SessionType `json:"type"`
	Filter      string      `json:"filter,omitempty"`
	EnabledTick int64       `json:"enabled_tick"`
	DisableTick int64       `json:"disable_tick,omitempty"`
	TotalTime   float64     `json:"total_time"`
	TotalOKs    int64       `json:"total_oks,omitempty"`
	TotalNOKs   int64       `json:"total_noks,omitempty"`
	Map         FrameMap    `json:"map"`
}

func NewSession(st SessionType, enabledTick, disableTick int64, filter string) *Session {
	return &Session{
		Type:        st,
		Filter:      filter,
		EnabledTick: enabledTick,
		DisableTick: disableTick,
		Map:         FrameMap{},
	}
}

// Indefinite reports whether the session has no planned end tick.
func (s *Session) Indefinite() bool {
	return s.DisableTick == 0
}

// EndTick is the last tick covered by the session as seen from tick now.
func (s *Session) EndTick(now int64) int64 {
	if s.Indefinite() || now < s.DisableTick {
		return now
	}
	return s.DisableTick
}

// ElapsedTicks is the inclusive number of ticks between the start tick and EndTick(now).
func (s *Session) ElapsedTicks(now int64) int64 {
	return s.EndTick(now) - s.EnabledTick + 1
}
