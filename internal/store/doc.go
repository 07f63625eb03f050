// Package store persists small keyed records for the transcriber.
//
// Records live in namespaces (combined transcripts, upload identities) and may
// carry an expiry. Three backends share the Store interface: SQLite for a
// single host, Redis for hosts that share a cache, and an in-memory map for
// tests and throwaway runs. Expired records behave exactly like missing ones.
package store
