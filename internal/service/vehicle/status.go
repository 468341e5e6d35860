package vehicle

import "fmt"

// Status is the lifecycle state of a worker.
type Status int32

const (
	Paused Status = iota
	Running
	OutOfFuel
	Stopped
)

func (s Status) String() string {
	switch s {
	case Paused:
		return "paused"
	case Running:
		return "running"
	case OutOfFuel:
		return "out_of_fuel"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}
