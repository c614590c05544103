// ABOUTME: Control server package
// ABOUTME: Remote control of a synchronized source group over websockets
// Package control serves the group control protocol.
//
// A Server owns no audio: it drives a groupsync.Group on behalf of remote controllers and
// broadcasts the group's state after each change and periodically while it plays.
//
// Example:
//
//	server, err := control.NewServer(control.ServerConfig{Group: group, EnableMDNS: true})
//	go server.Start()
//	defer server.Stop()
package control
