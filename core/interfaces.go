package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling closure panics
// =============================================================================

// PanicHandler is called when a submitted closure panics during execution.
// The panic is already contained at the worker boundary (the task fails, the
// pool survives); the handler exists for logging and crash reporting.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (carries task and worker ids)
	// - poolName: The name of the pool where the panic occurred
	// - workerID: The ID of the worker running the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs through a
// Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewZerologLogger(nil)
	}
	logger.Error("task panic recovered",
		F("pool", poolName),
		F("worker", workerID),
		F("task", CurrentTaskID(ctx).String()),
		F("panic", fmt.Sprintf("%v", panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD,
// etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordTaskDuration records how long a closure took to execute.
	RecordTaskDuration(poolName string, duration time.Duration)

	// RecordTaskPanic records that a closure panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordQueueDepth records the current ready-queue depth.
	RecordQueueDepth(poolName string, depth int)

	// RecordTaskRejected records that a submission was rejected
	// (e.g., during shutdown).
	RecordTaskRejected(poolName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(poolName string, duration time.Duration) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected submissions
// =============================================================================

// RejectedTaskHandler is called when a submission is rejected by the
// scheduler. This happens when the scheduler is shutting down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	// HandleRejectedTask is called when a submission is rejected.
	HandleRejectedTask(poolName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejections.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected submission.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(poolName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewZerologLogger(nil)
	}
	logger.Warn("task rejected", F("pool", poolName), F("reason", reason))
}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

// SchedulerConfig holds configuration options for a Scheduler.
// All handlers are optional; if not provided, default implementations are
// used.
type SchedulerConfig struct {
	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a submission is rejected.
	// Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}
