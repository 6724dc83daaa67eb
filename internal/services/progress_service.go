// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// 生成运行的阶段名，进度更新按阶段推进
const (
	StageCacheCheck      = "cache_check"
	StageInputValidation = "input_validation"
	StageOutline         = "outline"
	StageDerivatives     = "derivatives"
	StageValidation      = "validation"
	StageCacheWrite      = "cache_write"
)

// ProgressUpdate 一次进度更新
type ProgressUpdate struct {
	Stage    string `json:"stage"`    // 当前阶段名
	Progress int    `json:"progress"` // 进度百分比 (0-100)
	Message  string `json:"message"`  // 描述性消息
	Status   string `json:"status"`   // 状态：running, completed, failed
}

// ProgressTracker 跟踪单次生成运行的进度
type ProgressTracker struct {
	RunID       string
	Stage       string
	Progress    int
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService 管理所有运行的进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 创建新的进度跟踪器，已存在时返回现有跟踪器
func (s *ProgressService) CreateTracker(runID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[runID]; exists {
		return tracker
	}

	tracker := &ProgressTracker{
		RunID:       runID,
		Stage:       StageCacheCheck,
		Progress:    0,
		Message:     "运行初始化中...",
		Status:      "running",
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[runID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(runID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[runID]
	return tracker, exists
}

// EnterStage 进入新阶段并更新进度
func (t *ProgressTracker) EnterStage(stage string, progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Stage = stage
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.notifyLocked()
}

// UpdateProgress 更新当前阶段内的进度
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.notifyLocked()
}

// Complete 标记运行完成
func (t *ProgressTracker) Complete(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Progress = 100
	if message != "" {
		t.Message = message
	} else {
		t.Message = "生成运行已完成"
	}
	t.Status = "completed"
	t.UpdateTime = time.Now()
	t.notifyLocked()
	close(t.Done)
}

// Fail 标记运行失败
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Message = fmt.Sprintf("生成运行失败: %s", errorMsg)
	t.Status = "failed"
	t.UpdateTime = time.Now()
	t.notifyLocked()
	close(t.Done)
}

// notifyLocked 向全部订阅者非阻塞广播当前状态，调用方需持有锁
func (t *ProgressTracker) notifyLocked() {
	update := ProgressUpdate{
		Stage:    t.Stage,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}
	for subscriber := range t.subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Subscribe 订阅进度更新，返回的通道会立即收到当前状态
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.subscribers[subscriber] = true

	subscriber <- ProgressUpdate{
		Stage:    t.Stage,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}

	return subscriber
}

// Unsubscribe 取消订阅并关闭通道
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	delete(t.subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedRuns 清理超过保留时长的已结束运行
func (s *ProgressService) CleanupCompletedRuns(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		finished := tracker.Status == "completed" || tracker.Status == "failed"
		stale := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if finished && stale {
			delete(s.trackers, id)
		}
	}
}
