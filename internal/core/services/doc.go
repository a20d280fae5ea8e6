// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services depend only on ports and the domain. Fan-out is bounded with ants
// pools and long-running steps are traced with OpenTelemetry; with no tracer
// provider installed the spans are no-ops.
package services
