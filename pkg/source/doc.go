// Package source provides sound sources: device playback handles with attributes, a live
// status query, filter attachment and the hooks used by synchronized group playback.
//
// Sound plays an in-memory buffer. Streamed sources live in package stream.
package source
