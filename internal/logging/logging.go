// Package logging configures the process logger. Stdout carries the MCP
// JSON-RPC stream, so all logging goes to stderr, optionally mirrored to a
// file for post-mortem inspection.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

var logFile *os.File

// Init routes log output to stderr and, when path is non-empty, also to the
// given file. Failures to open the file are logged and otherwise ignored:
// losing the mirror is better than refusing to start.
func Init(path string) {
	log.SetOutput(os.Stderr)
	if path == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("WARNING: cannot create log directory: %v", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return
	}

	logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.Printf("Logging to file: %s", path)
}

// Close flushes and closes the log file mirror if one is open.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
