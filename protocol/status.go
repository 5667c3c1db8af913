package protocol

import "github.com/pithecene-io/sextant/types"

// AlgorithmStatus is the run status of an algorithm.
type AlgorithmStatus int

const (
	StatusDeployError AlgorithmStatus = iota
	StatusInQueue
	StatusRunning
	StatusStopped
	StatusLiquidated
	StatusDeleted
	StatusCompleted
	StatusRuntimeError
	StatusInvalid
	StatusLoggingIn
	StatusInitializing
	StatusHistory
)

var algorithmStatusNames = []string{
	"DeployError", "InQueue", "Running", "Stopped", "Liquidated", "Deleted",
	"Completed", "RuntimeError", "Invalid", "LoggingIn", "Initializing", "History",
}

func (s AlgorithmStatus) String() string { return types.EnumName(int(s), algorithmStatusNames) }

// IsTerminal reports whether the algorithm will produce no further results.
func (s AlgorithmStatus) IsTerminal() bool {
	switch s {
	case StatusDeployError, StatusStopped, StatusLiquidated, StatusDeleted,
		StatusCompleted, StatusRuntimeError, StatusInvalid:
		return true
	}
	return false
}

func (s *AlgorithmStatus) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, algorithmStatusNames)
	if err != nil {
		return err
	}
	*s = AlgorithmStatus(v)
	return nil
}

func (s AlgorithmStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
