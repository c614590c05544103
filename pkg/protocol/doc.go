// Package protocol implements the group control protocol.
//
// Messages are JSON envelopes of the form {"type": ..., "payload": ...} carried over a
// websocket at /control. A controller sends client/hello, then group/command and
// source/set requests; the server answers with server/hello and broadcasts group/state
// after every change.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8927"})
//	err := client.Connect()
//	err = client.Seek(30 * time.Second)
package protocol
