/*
Package ports defines the driven ports (interfaces) of the trip conversation core.

These interfaces decouple the turn logic from external implementations, allowing
the orchestrator to work with various storage backends, language models and
notification channels.

# Key Interfaces

  - SessionStore: persists and loads the TripRecord of a session, with expiry.
  - DistributedLocker: serializes same-session turns across replicas.
  - Transcriber: turns audio into text.
  - Extractor: proposes an untrusted candidate record for an utterance.
  - Notifier: broadcasts the response signal to a session's listeners.
*/
package ports
