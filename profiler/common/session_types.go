package common

type SessionType string

const (
	SessionTypeProfile    SessionType = "profile" // flat report printed once on the end tick
	SessionTypeStream     SessionType = "stream"  // flat report printed every tick
	SessionTypeEmail      SessionType = "email"
	SessionTypeBackground SessionType = "background" // never reports on its own
	SessionTypeCallgrind  SessionType = "callgrind"
)

var validSessionTypes = map[SessionType]struct{}{
	SessionTypeProfile: {}, SessionTypeStream: {}, SessionTypeEmail: {}, SessionTypeBackground: {}, SessionTypeCallgrind: {},
}

func (st SessionType) ToString() string {
	return string(st)
}

func FromString(s string) (SessionType, bool) {
	st := SessionType(s)
	if _, ok := validSessionTypes[st]; ok {
		return st, true
	}
	return "", false
}
