/*
Package stdlog defines the small logging interface the relay packages write
to, so callers can plug in whatever logger they already run.
*/
package stdlog

// StdLog is the set of printing methods shared by the standard library log
// package, zap's standard-logger bridge, and most logging packages.  Relay
// components hold a StdLog rather than a concrete logger, leaving the choice
// of backend to the caller.
type StdLog interface {
	// Print logs a message.  Arguments are handled in the manner of fmt.Print.
	Print(v ...interface{})

	// Println logs a message.  Arguments are handled in the manner of
	// fmt.Println.
	Println(v ...interface{})

	// Printf logs a message.  Arguments are handled in the manner of
	// fmt.Printf.
	Printf(format string, v ...interface{})
}
