/*
Package session implements the per-turn orchestration of trip conversations.

The Manager serializes access to one session across goroutines (ref-counted
mutexes) and, optionally, across replicas (ports.DistributedLocker). The
Orchestrator runs a full turn under that lock: load or create the record,
transcribe, extract, reduce, save with a refreshed TTL, then dispatch the
response signal. Nothing is written unless every step up to the save succeeds.
*/
package session
