// Package config loads, normalizes, and validates gmaild configuration data.
//
// It supplies defaults rooted at the per-service FGP directory
// (~/.fgp/services/gmail), expands tilde paths, reads TOML files, and honours
// environment fallbacks such as GMAILD_BACKEND_MODE. Every derived runtime path
// (socket, lock, pid file, journal database) is computed here so the daemon and
// the CLI always agree on where things live.
package config
