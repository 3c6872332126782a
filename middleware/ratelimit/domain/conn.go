package domain

// ConnState é o estado da conexão com o store.
//
//	DISCONNECTED -> CONNECTING -> READY -> (erro/close) -> CONNECTING ...
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateReady
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}
