package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogFormatter struct{}

var levelList = []string{
	"PANIC",
	"FATAL",
	"ERROR",
	"WARN",
	"INFO",
	"DEBUG",
	"TRACE",
}

func (lf *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	level := levelList[int(entry.Level)]
	caller := "-"
	if entry.Caller != nil {
		caller = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	// Example log line:
	// 2026-10-14 12:16:42 INFO exporter.go:171 Starting full export of shop (batch size 5000) run=4f1c... schema=shop
	msg := fmt.Sprintf("%s %s %s %s%s\n",
		entry.Time.Format("2006-01-02 15:04:05"), level, caller, entry.Message, formatFields(entry.Data))
	return []byte(msg), nil
}

func formatFields(fields log.Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}

// InitLogging sends log output to ${logDir}/logs/mariadump-<cmd>.log and,
// unless quiet, to stderr.
func InitLogging(logDir string, quiet, verbose bool, cmdName string) {
	logFileName := filepath.Join(logDir, "logs", fmt.Sprintf("mariadump-%s.log", cmdName))

	// lumberjack creates the logs folder and file when missing.
	logRotator := &lumberjack.Logger{
		Filename:   logFileName,
		MaxSize:    100, // megabytes before rotation
		MaxBackups: 10,
	}
	var out io.Writer = logRotator
	if !quiet {
		out = io.MultiWriter(os.Stderr, logRotator)
	}
	log.SetOutput(out)
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	if quiet {
		// Errors still reach the terminal.
		log.AddHook(&stderrHook{})
	}
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	log.SetReportCaller(true)
	log.SetFormatter(&LogFormatter{})
	log.Info("Logging initialised.")
	log.Infof("Args: %v", redactArgs(os.Args))
}

// errorOutput is where stderrHook writes.
var errorOutput io.Writer = os.Stderr

// stderrHook copies ERROR and above to errorOutput.
type stderrHook struct{}

func (h *stderrHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *stderrHook) Fire(entry *log.Entry) error {
	_, err := fmt.Fprintf(errorOutput, "%s: %s\n", levelList[int(entry.Level)], entry.Message)
	return err
}

var secretFlags = map[string]bool{
	"--password":      true,
	"-p":              true,
	"--smtp-password": true,
}

// redactArgs returns a copy of args with secret flag values masked.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out); i++ {
		opt := out[i]
		if secretFlags[opt] && i+1 < len(out) {
			out[i+1] = "XXX"
			i++
			continue
		}
		if name, _, ok := strings.Cut(opt, "="); ok && secretFlags[name] {
			out[i] = name + "=XXX"
		}
	}
	return out
}
