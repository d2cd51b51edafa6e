package player

// WorkerState is the decode worker's position in its lifecycle.
type WorkerState uint32

const (
	StateIdle WorkerState = iota
	StateOpening
	StateStreamDiscovery
	StateDecoding
	StateDraining
	StateError
	StateClosed
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreamDiscovery:
		return "stream-discovery"
	case StateDecoding:
		return "decoding"
	case StateDraining:
		return "draining"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText lets the state appear by name in JSON.
func (s WorkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
