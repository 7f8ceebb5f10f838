// Package cli provides the interactive NoteKeeper command-line client.
//
// It replaces the browser front end: a REPL that signs up, logs in, keeps
// the anti-forgery token in memory through client.HTTPClient, and manages
// notes. Input is checked with the same rules the server applies before
// anything is sent, and passwords are read without echo.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
