// ABOUTME: Streamed source package
// ABOUTME: Sources decoded in the background into a ring buffer the device pulls from
// Package stream provides sound sources that decode while they play.
//
// A Stream runs one decode goroutine that keeps a ring buffer filled ahead of the device.
// Seeking restarts that goroutine at the new offset, and the stream reports ready once
// enough audio is buffered, so a group start can wait for every stream to be primed.
//
// Example:
//
//	dec, err := decode.Open("track.mp3")
//	s, err := stream.New(dev, dec, stream.Config{Name: "track"})
//	s.PrepareForOffset(30 * time.Second)
//	<-s.Ready()
package stream
