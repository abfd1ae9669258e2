// Package logging provides structured logging setup for the amp proxy.
//
// Logs go to a size-rotated JSON file under ~/.amp/logs/ and, optionally,
// to stderr. Stderr output is plain text when attached to a terminal and
// JSON when piped, so both interactive use and log collection stay readable.
package logging
