/*
Package domain contains the core models of the trip booking conversation.

It is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - TripRecord: the authoritative, persisted state of one session (slots, preferences, intent).
  - Intent, TripType, VehicleType, Language: closed enums with explicit unset sentinels.
  - Signal: what listeners receive after a turn (intent and response asset).
  - TurnHooks: observability callbacks fired by the orchestrator.
*/
package domain
