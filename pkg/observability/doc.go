/*
Package observability turns turn lifecycle hooks into Prometheus metrics.

Metrics composes with any other domain.TurnHooks (logging, auditing) through Chain.
*/
package observability
