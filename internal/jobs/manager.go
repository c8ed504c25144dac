package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"clipmix/internal/domain"
)

// ErrJobAlreadyRunning is returned when a stage is started while its previous
// job is still in flight. Re-invocation is rejected rather than restarted.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when a transition is requested for an idle stage.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks at most one job per stage and validates its transitions.
type Manager struct {
	mu      sync.RWMutex
	current map[domain.Stage]domain.Job
	now     func() time.Time
}

// NewManager creates a manager with both stages idle.
func NewManager() *Manager {
	return &Manager{
		current: map[domain.Stage]domain.Job{
			domain.StagePreview: {Stage: domain.StagePreview, Status: domain.JobStatusIdle},
			domain.StageMerge:   {Stage: domain.StageMerge, Status: domain.JobStatusIdle},
		},
		now: time.Now,
	}
}

// Start replaces the stage's terminal job with a new one in its first state.
func (m *Manager) Start(stage domain.Stage, jobID string) (domain.Job, error) {
	first, ok := firstStatus(stage)
	if !ok {
		return domain.Job{}, fmt.Errorf("unknown stage: %s", stage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current[stage].Status) {
		return domain.Job{}, ErrJobAlreadyRunning
	}

	job := domain.Job{
		ID:        jobID,
		Stage:     stage,
		Status:    first,
		StartedAt: m.now().UTC(),
	}
	m.current[stage] = job
	return job, nil
}

// Transition validates and applies a state transition for the stage's job.
func (m *Manager) Transition(stage domain.Stage, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.current[stage]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	if job.ID == "" {
		return ErrNoRunningJob
	}
	if status == job.Status {
		return nil
	}
	if !isValidTransition(stage, job.Status, status) {
		return fmt.Errorf("invalid %s transition: %s -> %s", stage, job.Status, status)
	}

	job.Status = status
	m.current[stage] = job
	return nil
}

// Fail moves a running job to failed and records the reason.
func (m *Manager) Fail(stage domain.Stage, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.current[stage]
	if !isRunning(job.Status) {
		return ErrNoRunningJob
	}
	job.Status = domain.JobStatusFailed
	job.Error = reason
	m.current[stage] = job
	return nil
}

// Current returns a snapshot of the stage's job.
func (m *Manager) Current(stage domain.Stage) domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current[stage]
}

// All returns snapshots of every stage's job.
func (m *Manager) All() []domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return []domain.Job{m.current[domain.StagePreview], m.current[domain.StageMerge]}
}

// Reset returns the stage to idle unless its job is running.
func (m *Manager) Reset(stage domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isRunning(m.current[stage].Status) {
		return ErrJobAlreadyRunning
	}
	m.current[stage] = domain.Job{Stage: stage, Status: domain.JobStatusIdle}
	return nil
}

// IsRunning reports whether the stage has a job in flight.
func (m *Manager) IsRunning(stage domain.Stage) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current[stage].Status)
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusValidating,
		domain.JobStatusWriting,
		domain.JobStatusExecuting,
		domain.JobStatusExtracting,
		domain.JobStatusMixing,
		domain.JobStatusReading:
		return true
	default:
		return false
	}
}

// stageSteps lists each stage's running states in order.
var stageSteps = map[domain.Stage][]domain.JobStatus{
	domain.StagePreview: {
		domain.JobStatusWriting,
		domain.JobStatusExecuting,
		domain.JobStatusReading,
	},
	domain.StageMerge: {
		domain.JobStatusValidating,
		domain.JobStatusWriting,
		domain.JobStatusExtracting,
		domain.JobStatusMixing,
		domain.JobStatusReading,
	},
}

func firstStatus(stage domain.Stage) (domain.JobStatus, bool) {
	steps, ok := stageSteps[stage]
	if !ok || len(steps) == 0 {
		return "", false
	}
	return steps[0], true
}

// isValidTransition enforces the allowed job state machine edges: forward one
// step, from the last step to done, and from any running step to failed.
func isValidTransition(stage domain.Stage, from, to domain.JobStatus) bool {
	steps := stageSteps[stage]
	if to == domain.JobStatusFailed {
		return isRunning(from)
	}
	for i, step := range steps {
		if step != from {
			continue
		}
		if i == len(steps)-1 {
			return to == domain.JobStatusDone
		}
		return to == steps[i+1]
	}
	return false
}
