package entity

// PipelineState 生成流程状态
type PipelineState string

const (
	StateReceived     PipelineState = "received"
	StateOutlineReady PipelineState = "outline_ready"
	StateDetailReady  PipelineState = "detail_ready"
	StateCompleted    PipelineState = "completed"
	StateFailed       PipelineState = "failed"
)

// stateOrder 合法的前进顺序
var stateOrder = map[PipelineState]int{
	StateReceived:     0,
	StateOutlineReady: 1,
	StateDetailReady:  2,
	StateCompleted:    3,
}

// IsTerminal 是否为终态
func (s PipelineState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition 状态只能前进一步或进入 failed，终态不可离开
func (s PipelineState) CanTransition(to PipelineState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	next, ok := stateOrder[to]
	return ok && next == from+1
}

// Progress 状态对应的任务进度
func (s PipelineState) Progress() int {
	switch s {
	case StateReceived:
		return 5
	case StateOutlineReady:
		return 30
	case StateDetailReady:
		return 60
	case StateCompleted:
		return 100
	default:
		return 0
	}
}
