// Package log wraps the standard library logger with named, per-service
// loggers.
//
//	l := log.ForService("cms")
//	l.Infof("fetched homepage for tenant %s", id)
//	l.Debugf("raw response: %s", body) // only when debug is on for "cms"
//
// Debug output can be enabled globally (SetGlobalDebug) or per service
// (EnableDebugFor). SetOutput reroutes every logger, which is how tests
// capture output in a bytes.Buffer.
//
// Nop returns a logger that discards everything. The block pipeline uses it
// outside dev mode so render code never branches on the environment.
package log
