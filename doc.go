/*
Package tripflow is a slot-filling conversation backend for a voice cab-booking assistant.

Each caller, keyed by phone number, owns one trip record. Every utterance runs as a turn:

	load or create the record
	transcribe audio (or take the text as is)
	ask a language model to extract slots from the utterance
	merge the extraction into the record and pick the next intent
	save the record with a sliding expiry
	broadcast the pre-recorded response for that intent

The language model is treated as untrusted input: anything it returns outside the
closed vocabularies (intents, trip types, vehicle types, languages) is clamped, and
a slot it omits keeps its previous value.

# Packages

  - pkg/domain: the trip record, enums, errors and turn events.
  - pkg/reducer: the pure merge of an extraction into a record.
  - pkg/session: per-session locking and the turn orchestrator.
  - pkg/dispatch: the intent to asset table and signal delivery.
  - pkg/adapters: Redis, file and memory stores, model providers, speech to text,
    LiveKit, the HTTP API and the MCP server.

# Usage

Embedding the flow needs a store and an extractor:

	sessions := session.NewManager(memory.NewStore())
	turns := session.NewOrchestrator(sessions, extractor.NewOpenAI())

	res, err := turns.Turn(ctx, session.TurnRequest{
		Identity: domain.Identity{Phone: "9000000001"},
		Text:     "I need a cab from Indore to Rewa",
	})

The tripflow command wires everything from tripflow.yaml and the environment:

	tripflow serve
	tripflow chat --phone 9000000001
	tripflow session ls
*/
package tripflow
