// Package scheduler runs the cooperative publish/poll loop.
//
// One goroutine drives everything. Each iteration advances the publish
// timer by the poll interval, publishes every configured feed once the
// publish period has elapsed, polls the session for one inbound message
// and then sleeps for the poll interval. Inbound control latency is
// therefore bounded by the poll interval, not the publish period.
//
// Cancellation is observed between iterations, never during a sleep, so
// shutdown takes at most one poll interval. The loop then disconnects the
// session exactly once.
//
// With no publications the loop blocks in WaitMessage instead of polling.
package scheduler
