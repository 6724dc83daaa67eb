// internal/services/task_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/CourseForgeMCP/internal/errors"
	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// 运行状态
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// GenerationRun 一次异步生成运行的登记项
type GenerationRun struct {
	ID          string                   `json:"id"`
	Status      string                   `json:"status"`
	Request     models.GenerationRequest `json:"request"`
	Result      *models.GenerationResult `json:"result,omitempty"`
	Error       string                   `json:"error,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

// TaskService 异步运行注册表：
// HTTP层提交请求后立即拿到运行ID，生成在后台执行，结果按ID查询
type TaskService struct {
	generator *GeneratorService
	runs      map[string]*GenerationRun
	mutex     sync.RWMutex
	timeout   time.Duration
}

// NewTaskService 创建任务服务
func NewTaskService(generator *GeneratorService, timeout time.Duration) *TaskService {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &TaskService{
		generator: generator,
		runs:      make(map[string]*GenerationRun),
		timeout:   timeout,
	}
}

// StartRun 登记一次运行并在后台启动生成，立即返回运行ID
func (s *TaskService) StartRun(req models.GenerationRequest) string {
	runID := uuid.New().String()

	run := &GenerationRun{
		ID:        runID,
		Status:    RunStatusPending,
		Request:   req,
		CreatedAt: time.Now(),
	}

	s.mutex.Lock()
	s.runs[runID] = run
	s.mutex.Unlock()

	go s.execute(runID, req)
	return runID
}

// execute 后台执行生成并回填运行结果
func (s *TaskService) execute(runID string, req models.GenerationRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.setStatus(runID, RunStatusRunning)

	result, err := s.generator.Generate(ctx, req, runID)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return
	}

	now := time.Now()
	run.CompletedAt = &now
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		utils.GetLogger().Error("异步生成运行失败", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		return
	}
	run.Status = RunStatusCompleted
	run.Result = result
}

func (s *TaskService) setStatus(runID, status string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if run, exists := s.runs[runID]; exists {
		run.Status = status
	}
}

// GetRun 按ID查询运行，返回副本避免调用方看到中间态修改
func (s *TaskService) GetRun(runID string) (*GenerationRun, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, apperrors.NewNotFoundError("运行不存在: "+runID, nil)
	}

	runCopy := *run
	return &runCopy, nil
}

// ListRuns 返回全部已登记的运行副本
func (s *TaskService) ListRuns() []*GenerationRun {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	runs := make([]*GenerationRun, 0, len(s.runs))
	for _, run := range s.runs {
		runCopy := *run
		runs = append(runs, &runCopy)
	}
	return runs
}

// CleanupRuns 清理结束超过保留时长的运行
func (s *TaskService) CleanupRuns(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, run := range s.runs {
		if run.CompletedAt != nil && now.Sub(*run.CompletedAt) > maxAge {
			delete(s.runs, id)
		}
	}
}
