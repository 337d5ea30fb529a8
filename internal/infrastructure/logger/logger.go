package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stdout, "ERROR: ", logFlags)
	Debug = log.New(io.Discard, "DEBUG: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)
}

// SetLevel enables debug output for "debug" and silences it otherwise.
func SetLevel(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		Debug.SetOutput(os.Stdout)
		return
	}
	Debug.SetOutput(io.Discard)
}

// SetOutput redirects every logger, mainly for tests.
func SetOutput(w io.Writer) {
	Info.SetOutput(w)
	Error.SetOutput(w)
	Warn.SetOutput(w)
	Debug.SetOutput(w)
}
