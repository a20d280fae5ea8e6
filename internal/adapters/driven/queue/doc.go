// Package queue groups the JobQueue adapters.
//
// Subpackages:
//   - memory: in-process FIFO, used by single-binary deployments and tests
//   - redis: list-backed queue shared between processes
package queue
