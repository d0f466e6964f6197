package statemachine

import "k8s.io/klog/v2"

// JobStatus 生成任务的所有可能状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"   // 已创建
	JobStatusRunning   JobStatus = "running"   // 正在执行
	JobStatusCompleted JobStatus = "completed" // 执行成功
	JobStatusFailed    JobStatus = "failed"    // 执行失败
)

// JobStateMachine 任务状态机，终止态不可再迁移
type JobStateMachine struct {
	allowedTransitions map[Transition[JobStatus]]bool
}

// NewJobStateMachine 创建任务状态机
func NewJobStateMachine() *JobStateMachine {
	sm := &JobStateMachine{
		allowedTransitions: make(map[Transition[JobStatus]]bool),
	}

	// pending -> running -> completed/failed
	transitions := []Transition[JobStatus]{
		{JobStatusPending, JobStatusRunning},
		{JobStatusPending, JobStatusFailed},
		{JobStatusRunning, JobStatusCompleted},
		{JobStatusRunning, JobStatusFailed},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *JobStateMachine) CanTransition(from, to JobStatus) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[Transition[JobStatus]{From: from, To: to}]
}

// Transition 执行状态迁移（带日志）
func (sm *JobStateMachine) Transition(from, to JobStatus, jobID string) error {
	if !sm.CanTransition(from, to) {
		klog.V(6).Infof("任务状态迁移被拒绝: jobID=%s, %s -> %s", jobID, from, to)
		return &InvalidStateTransitionError{
			Kind: "job",
			From: string(from),
			To:   string(to),
		}
	}

	klog.V(6).Infof("任务状态迁移成功: jobID=%s, %s -> %s", jobID, from, to)
	return nil
}

// IsTerminal 判断任务是否已结束
func IsTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
