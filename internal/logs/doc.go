// Package logs provides file tailing with byte-offset cursors.
//
// It backs `subcue log` when the daemon is not reachable: the CLI reads the
// daemon's log file directly, remembers the returned offset, and polls for
// growth in follow mode. Reads are line oriented with bounded memory so
// tailing a large log never loads it whole.
//
// Live streaming against a running daemon goes through the logging stream
// hub over IPC instead; this package only ever sees files.
package logs
