package errors

import (
	"fmt"
)

// Common error codes
const (
	// Configuration error codes
	CodeConfigLoad     = "001"
	CodeConfigCapacity = "002"
	CodeConfigWorkers  = "003"
	CodeConfigChannels = "004"

	// Validation error codes
	CodeValidationInput = "001"

	// Plan error codes
	CodePlanLoad              = "001"
	CodePlanDuplicateNode     = "002"
	CodePlanUnknownDependency = "003"
	CodePlanCycle             = "004"
	CodePlanChannel           = "005"
	CodePlanTask              = "006"

	// Capacity error codes
	CodeCapacityTasks        = "001"
	CodeCapacityDependencies = "002"

	// Scheduler error codes
	CodeSchedulerInvariant = "001"

	// Execution error codes
	CodeExecutionNode    = "001"
	CodeExecutionTimeout = "002"
)

// NewConfigLoadError reports an unreadable or malformed config file
func NewConfigLoadError(path string, originalErr error) *ShedError {
	return NewConfigurationError(CodeConfigLoad,
		fmt.Sprintf("Failed to load configuration from '%s'", path),
		"Configuration loading").
		WithContext("path", path).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Check the file exists and is readable",
			"Validate the YAML syntax of the file",
		)
}

// NewCapacityConfigError reports a scheduler capacity outside its limits
func NewCapacityConfigError(field string, value, limit uint64) *ShedError {
	return NewConfigurationError(CodeConfigCapacity,
		fmt.Sprintf("%s must be between 1 and %d, got %d", field, limit, value),
		"Configuration validation").
		WithContext("field", field).
		WithContext("value", value).
		WithContext("limit", limit).
		WithTroubleshooting(fmt.Sprintf("Set %s to a value between 1 and %d", field, limit))
}

// NewWorkerConfigError reports an unusable worker layout
func NewWorkerConfigError(message string) *ShedError {
	return NewConfigurationError(CodeConfigWorkers, message, "Configuration validation").
		WithTroubleshooting(
			"Give every channel at least one worker",
			"List one worker count per channel in workers.per_channel",
		)
}

// NewChannelConfigError reports a channel count outside 1..255
func NewChannelConfigError(channels int) *ShedError {
	return NewConfigurationError(CodeConfigChannels,
		fmt.Sprintf("channel count must be between 1 and 255, got %d", channels),
		"Configuration validation").
		WithContext("channels", channels)
}

// NewPlanLoadError reports an unreadable or malformed plan file
func NewPlanLoadError(path string, originalErr error) *ShedError {
	return NewPlanError(CodePlanLoad,
		fmt.Sprintf("Failed to load plan '%s'", path),
		"Plan loading").
		WithContext("path", path).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Check the plan file exists and is valid YAML",
			"Every node needs a unique id and a task",
		)
}

// NewDuplicateNodeError reports two nodes sharing an id
func NewDuplicateNodeError(nodeID string) *ShedError {
	return NewPlanError(CodePlanDuplicateNode,
		fmt.Sprintf("Node '%s' is defined more than once", nodeID),
		"Plan construction").
		WithContext("node", nodeID)
}

// NewUnknownDependencyError reports an edge to a node that does not exist
func NewUnknownDependencyError(nodeID, dependencyID string) *ShedError {
	return NewPlanError(CodePlanUnknownDependency,
		fmt.Sprintf("Node '%s' depends on unknown node '%s'", nodeID, dependencyID),
		"Plan construction").
		WithContext("node", nodeID).
		WithContext("dependency", dependencyID).
		WithTroubleshooting("Check the spelling of the dependency id")
}

// NewPlanCycleError reports a dependency cycle
func NewPlanCycleError(originalErr error) *ShedError {
	return NewPlanError(CodePlanCycle, "Plan contains a dependency cycle", "Plan validation").
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Remove one of the edges that closes the cycle",
			"Use 'shed graph' to inspect the dependency structure",
		)
}

// NewPlanChannelError reports a node assigned to a channel the scheduler lacks
func NewPlanChannelError(nodeID string, channel, channels int) *ShedError {
	return NewPlanError(CodePlanChannel,
		fmt.Sprintf("Node '%s' uses channel %d but only %d channels are configured", nodeID, channel, channels),
		"Plan validation").
		WithContext("node", nodeID).
		WithContext("channel", channel).
		WithContext("channels", channels).
		WithTroubleshooting("Raise scheduler.channels or move the node to a lower channel")
}

// NewPlanTaskError reports an unknown or misconfigured task kind
func NewPlanTaskError(nodeID, kind string, originalErr error) *ShedError {
	return NewPlanError(CodePlanTask,
		fmt.Sprintf("Node '%s' has an invalid task '%s'", nodeID, kind),
		"Plan construction").
		WithContext("node", nodeID).
		WithContext("task", kind).
		WithOriginalError(originalErr).
		WithTroubleshooting("Supported tasks are noop, spin, sleep and fail")
}

// NewTaskCapacityError reports a plan that can never fit the task pool
func NewTaskCapacityError(required int, maxTasks uint32) *ShedError {
	return NewCapacityError(CodeCapacityTasks,
		fmt.Sprintf("Plan needs %d task slots but the scheduler holds %d", required, maxTasks),
		"Frame submission").
		WithContext("required", required).
		WithContext("max_tasks", maxTasks).
		WithTroubleshooting("Raise scheduler.max_tasks")
}

// NewDependencyCapacityError reports a plan that can never fit the dependency pool
func NewDependencyCapacityError(required int, maxDependencies uint32) *ShedError {
	return NewCapacityError(CodeCapacityDependencies,
		fmt.Sprintf("Plan needs %d dependency edges but the scheduler holds %d", required, maxDependencies),
		"Frame submission").
		WithContext("required", required).
		WithContext("max_dependencies", maxDependencies).
		WithTroubleshooting("Raise scheduler.max_dependencies")
}

// NewInvariantViolationError wraps a broken scheduler contract
func NewInvariantViolationError(operation string, originalErr error) *ShedError {
	return NewSchedulerError(CodeSchedulerInvariant,
		"Scheduler usage contract violated",
		operation).
		WithOriginalError(originalErr).
		WithTroubleshooting("Run with --debug to see the failing expression and position")
}

// NewNodeFailedError reports a task body that returned an error
func NewNodeFailedError(nodeID string, frame int, originalErr error) *ShedError {
	return NewExecutionError(CodeExecutionNode,
		fmt.Sprintf("Node '%s' failed in frame %d", nodeID, frame),
		"Frame execution").
		WithContext("node", nodeID).
		WithContext("frame", frame).
		WithOriginalError(originalErr)
}

// NewFrameTimeoutError reports a frame that did not finish in time
func NewFrameTimeoutError(frame int, pending int64, originalErr error) *ShedError {
	return NewExecutionError(CodeExecutionTimeout,
		fmt.Sprintf("Frame %d did not complete, %d nodes outstanding", frame, pending),
		"Frame execution").
		WithContext("frame", frame).
		WithContext("pending", pending).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Raise run.frame_timeout",
			"Check that every channel used by the plan has workers",
		)
}
