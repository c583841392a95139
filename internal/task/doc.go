// Package task contains the offline-resilient submission engine: the
// retry orchestrator that drives one submission through bounded
// attempts with exponential backoff and an at-most-once server restart,
// and the dispatcher the host process invokes with an action name. The
// dispatcher holds no state between invocations; everything durable
// lives in the store package because the host may tear the process down
// between any two calls.
package task
