package execution

var (
	Pending   State = "pending"
	Running   State = "running"
	Completed State = "completed"
	Erred     State = "erred"
)

type State string

func (s State) String() string {
	return string(s)
}

// Execution records one execute_request handled by the kernel.
type Execution struct {
	MsgID          string
	Code           string
	ExecutionCount int
	Silent         bool
	State          State
	Output         string
	Err            *Error
}

// NewExecution creates a pending execution.
func NewExecution(msgId string, code string, executionCount int, silent bool) *Execution {
	return &Execution{
		MsgID:          msgId,
		Code:           code,
		ExecutionCount: executionCount,
		Silent:         silent,
		State:          Pending,
	}
}

// Complete records the output of a successful execution.
func (e *Execution) Complete(output string) {
	e.State = Completed
	e.Output = output
}

// Fail records the error of a failed execution.
func (e *Execution) Fail(err *Error) {
	e.State = Erred
	e.Err = err
}
