// Package shed implements a fixed-capacity, lock-free work scheduler.
//
// All scheduling state lives in a single caller-supplied memory block sized by
// RequiredSize. Tasks are reserved with CreateTasks, linked with
// AddDependencies, pinned to an execution channel with SetTasksChannel and
// handed to the ready queues with ReadyTasks. Worker goroutines drain a
// channel with ExecuteOne; completing a task releases its slot and readies
// every dependent whose last outstanding dependency it was.
//
// No operation takes a lock or allocates after New returns. Every shared word
// is accessed through sync/atomic, and every free list and ready queue is a
// Treiber stack whose head carries a generation stamp so a concurrent
// pop/push/pop of the same slot cannot be mistaken for an unchanged head.
package shed
