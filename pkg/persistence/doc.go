// Package persistence defines how trip records are encoded at rest.
//
// Stores delegate serialization to a Codec so that encryption can be layered on
// without touching the storage adapters.
package persistence
