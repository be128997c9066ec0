package taskcore

import (
	"github.com/taskcore/go-taskcore/core"
)

// Re-exported core types so simple programs only import the root package.
type (
	TaskID              = core.TaskID
	Runnable            = core.Runnable
	Closure[R any]      = core.Closure[R]
	TaskHandle[R any]   = core.TaskHandle[R]
	TaskState           = core.TaskState
	TaskMetrics         = core.TaskMetrics
	TaskSnapshot        = core.TaskSnapshot
	Inputs              = core.Inputs
	SubmitOption        = core.SubmitOption
	TransferableBuffer  = core.TransferableBuffer
	TransferToken       = core.TransferToken
	TransferBundle      = core.TransferBundle
	SharedBuffer[T any] = core.SharedBuffer[T]
	Mutex[T any]        = core.Mutex[T]
	Guard[T any]        = core.Guard[T]
	Barrier             = core.Barrier
	BarrierResult       = core.BarrierResult
	Logger              = core.Logger
	Field               = core.Field
	PanicHandler        = core.PanicHandler
	Metrics             = core.Metrics
	RejectedTaskHandler = core.RejectedTaskHandler
	SchedulerConfig     = core.SchedulerConfig
	TaskError           = core.TaskError
	ReentrancyError     = core.ReentrancyError
	BarrierTimeoutError = core.BarrierTimeoutError
	PoolStats           = core.PoolStats
	RegistryStats       = core.RegistryStats
	TaskExecutionRecord = core.TaskExecutionRecord
)

// Task states.
const (
	TaskStatePending   = core.TaskStatePending
	TaskStateRunning   = core.TaskStateRunning
	TaskStateCompleted = core.TaskStateCompleted
	TaskStateFailed    = core.TaskStateFailed
)

// Sentinel errors.
var (
	ErrAlreadyTransferred = core.ErrAlreadyTransferred
	ErrTokenConsumed      = core.ErrTokenConsumed
	ErrPoolShutdown       = core.ErrPoolShutdown
	ErrAlreadyInitialized = core.ErrAlreadyInitialized
	ErrNotInitialized     = core.ErrNotInitialized
)

// Constructors and helpers forwarded from core.
var (
	NewTransferableBuffer  = core.NewTransferableBuffer
	Move                   = core.Move
	NewBarrier             = core.NewBarrier
	NewBarrierWithTimeout  = core.NewBarrierWithTimeout
	F                      = core.F
	NewZerologLogger       = core.NewZerologLogger
	NewNoOpLogger          = core.NewNoOpLogger
	CurrentTaskID          = core.CurrentTaskID
	CurrentWorkerID        = core.CurrentWorkerID
	WithValues             = core.WithValues
	WithTransfer           = core.WithTransfer
	DefaultSchedulerConfig = core.DefaultSchedulerConfig
)

// NewMutex creates a mutex guarding the given shared buffer.
func NewMutex[T any](shared *SharedBuffer[T]) *Mutex[T] {
	return core.NewMutex(shared)
}

// NewSharedBuffer creates a shared structured buffer.
func NewSharedBuffer[T any](initial T) *SharedBuffer[T] {
	return core.NewSharedBuffer(initial)
}
