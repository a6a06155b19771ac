// Package core defines the shared conversational data model: sessions, turns,
// steps, pending confirmations and investigation summaries. Higher layers
// (session store, engine, server) depend on core; core depends only on the
// entity package and the standard library.
package core
