package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// StoryStatus 故事的所有可能状态
type StoryStatus string

const (
	StoryStatusDraft      StoryStatus = "draft"      // 新建或生成失败回退
	StoryStatusGenerating StoryStatus = "generating" // 正在调用模型生成
	StoryStatusReviewing  StoryStatus = "reviewing"  // 已生成，等待审核
	StoryStatusApproved   StoryStatus = "approved"   // 审核通过
	StoryStatusPublished  StoryStatus = "published"  // 已发布
)

// Transition 状态迁移
type Transition[S ~string] struct {
	From S
	To   S
}

// StoryStateMachine 故事状态机
type StoryStateMachine struct {
	allowedTransitions map[Transition[StoryStatus]]bool
}

// NewStoryStateMachine 创建故事状态机
func NewStoryStateMachine() *StoryStateMachine {
	sm := &StoryStateMachine{
		allowedTransitions: make(map[Transition[StoryStatus]]bool),
	}

	// draft -> generating -> reviewing -> approved -> published
	transitions := []Transition[StoryStatus]{
		// 生成流程
		{StoryStatusDraft, StoryStatusGenerating},
		{StoryStatusReviewing, StoryStatusGenerating}, // 整体重新生成
		{StoryStatusGenerating, StoryStatusReviewing},
		{StoryStatusGenerating, StoryStatusDraft}, // 生成失败回退

		// 审核发布流程
		{StoryStatusReviewing, StoryStatusApproved},
		{StoryStatusReviewing, StoryStatusDraft},
		{StoryStatusApproved, StoryStatusPublished},
		{StoryStatusApproved, StoryStatusReviewing},
		{StoryStatusPublished, StoryStatusApproved}, // 下架
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *StoryStateMachine) CanTransition(from, to StoryStatus) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[Transition[StoryStatus]{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *StoryStateMachine) ValidateTransition(from, to StoryStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			Kind: "story",
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *StoryStateMachine) Transition(from, to StoryStatus, storyID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("故事状态迁移被拒绝: storyID=%s, %s -> %s, error=%v", storyID, from, to, err)
		return err
	}

	klog.V(6).Infof("故事状态迁移成功: storyID=%s, %s -> %s", storyID, from, to)
	return nil
}

// GenerationSources 允许开始整体生成的故事状态
func GenerationSources() []StoryStatus {
	return []StoryStatus{StoryStatusDraft, StoryStatusReviewing}
}

// IsValidStoryStatus 判断是否为已知的故事状态
func IsValidStoryStatus(status string) bool {
	switch StoryStatus(status) {
	case StoryStatusDraft, StoryStatusGenerating, StoryStatusReviewing, StoryStatusApproved, StoryStatusPublished:
		return true
	}
	return false
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	Kind string
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s -> %s", e.Kind, e.From, e.To)
}
