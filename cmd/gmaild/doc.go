// Package main hosts the gmaild CLI entrypoint and command graph.
//
// The Cobra command tree starts and stops the daemon, forwards method calls
// over the control socket, and renders status, health, method and history
// views. The hidden daemon subcommand is the long-running process itself.
package main
