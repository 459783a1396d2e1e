package dispatch

// State is a step of a single dispatch:
//
//	Idle -> Dispatching -> Success -> Idle
//	Idle -> Dispatching -> Failed -> FallbackLookup -> FallbackHit|FallbackMiss -> Idle
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateSuccess
	StateFailed
	StateFallbackLookup
	StateFallbackHit
	StateFallbackMiss
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateDispatching:    "dispatching",
	StateSuccess:        "success",
	StateFailed:         "failed",
	StateFallbackLookup: "fallback_lookup",
	StateFallbackHit:    "fallback_hit",
	StateFallbackMiss:   "fallback_miss",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
