package statemachine

import "k8s.io/klog/v2"

// EpisodeStatus 剧集的所有可能状态
type EpisodeStatus string

const (
	EpisodeStatusDraft     EpisodeStatus = "draft"
	EpisodeStatusGenerated EpisodeStatus = "generated"
	EpisodeStatusApproved  EpisodeStatus = "approved"
	EpisodeStatusRejected  EpisodeStatus = "rejected"
)

// EpisodeStateMachine 剧集审核状态机
type EpisodeStateMachine struct {
	allowedTransitions map[Transition[EpisodeStatus]]bool
}

// NewEpisodeStateMachine 创建剧集状态机
func NewEpisodeStateMachine() *EpisodeStateMachine {
	sm := &EpisodeStateMachine{
		allowedTransitions: make(map[Transition[EpisodeStatus]]bool),
	}

	transitions := []Transition[EpisodeStatus]{
		{EpisodeStatusDraft, EpisodeStatusGenerated},
		{EpisodeStatusDraft, EpisodeStatusApproved},
		{EpisodeStatusDraft, EpisodeStatusRejected},
		{EpisodeStatusGenerated, EpisodeStatusApproved},
		{EpisodeStatusGenerated, EpisodeStatusRejected},
		{EpisodeStatusApproved, EpisodeStatusRejected},
		{EpisodeStatusRejected, EpisodeStatusApproved},

		// 重新生成后回到待审
		{EpisodeStatusApproved, EpisodeStatusGenerated},
		{EpisodeStatusRejected, EpisodeStatusGenerated},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *EpisodeStateMachine) CanTransition(from, to EpisodeStatus) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[Transition[EpisodeStatus]{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *EpisodeStateMachine) ValidateTransition(from, to EpisodeStatus) error {
	if !sm.CanTransition(from, to) {
		klog.V(6).Infof("剧集状态迁移被拒绝: %s -> %s", from, to)
		return &InvalidStateTransitionError{
			Kind: "episode",
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// IsValidEpisodeStatus 判断是否为已知的剧集状态
func IsValidEpisodeStatus(status string) bool {
	switch EpisodeStatus(status) {
	case EpisodeStatusDraft, EpisodeStatusGenerated, EpisodeStatusApproved, EpisodeStatusRejected:
		return true
	}
	return false
}
