package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RunLogger writes a plain-text transcript of one batch run.
type RunLogger struct {
	runID     string
	out       io.Writer
	file      *os.File
	mutex     sync.Mutex
	startTime time.Time
}

// StartRunLogging creates <dir>/run_<runID>_<timestamp>.log.
func StartRunLogging(dir, runID string) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("run_%s_%s.log", runID, time.Now().Format("20060102_150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	r := NewRunLogger(f, runID)
	r.file = f
	return r, nil
}

// NewRunLogger writes the transcript to w.
func NewRunLogger(w io.Writer, runID string) *RunLogger {
	r := &RunLogger{runID: runID, out: w, startTime: time.Now()}
	fmt.Fprintf(w, "SKILLGRID RUN LOG\nRun ID: %s\nStart Time: %s\nLog Format: [HH:MM:SS.mmm] [+duration] message\n\n",
		runID, r.startTime.Format("2006-01-02 15:04:05"))
	return r
}

// Path returns the log file path, or "" when not file-backed.
func (r *RunLogger) Path() string {
	if r == nil || r.file == nil {
		return ""
	}
	return r.file.Name()
}

// Log appends one timestamped line. A nil logger discards everything.
func (r *RunLogger) Log(format string, args ...any) {
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.out == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(r.out, "[%s] [+%v] %s\n", time.Now().Format("15:04:05.000"), time.Since(r.startTime).Round(time.Millisecond), msg)
	log.Trace().Str("run", r.runID).Msg(msg)
}

func (r *RunLogger) LogSection(title string) {
	if r == nil {
		return
	}
	sep := strings.Repeat("=", 80)
	r.Log("%s", sep)
	r.Log("= %s", title)
	r.Log("%s", sep)
}

// LogRequest records the prompt sent for one cell.
func (r *RunLogger) LogRequest(rowID, model, prompt string) {
	if r == nil {
		return
	}
	r.LogSection(fmt.Sprintf("REQUEST - Row %s", rowID))
	r.Log("Model: %s", model)
	r.Log("Prompt length: %d characters", len(prompt))
	r.raw("--- PROMPT START ---", prompt, "--- PROMPT END ---")
}

func (r *RunLogger) LogResponse(rowID, response string) {
	if r == nil {
		return
	}
	r.LogSection(fmt.Sprintf("RESPONSE - Row %s", rowID))
	r.raw("--- RESPONSE START ---", response, "--- RESPONSE END ---")
}

func (r *RunLogger) LogError(context string, err error) {
	if r == nil {
		return
	}
	r.Log("ERROR in %s: %v", context, err)
}

func (r *RunLogger) raw(open, body, close string) {
	r.Log("%s", open)
	r.mutex.Lock()
	if r.out != nil {
		io.WriteString(r.out, body+"\n")
	}
	r.mutex.Unlock()
	r.Log("%s", close)
}

// Close writes the footer and closes the file, if any.
func (r *RunLogger) Close() {
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.out == nil {
		return
	}
	fmt.Fprintf(r.out, "[%s] [+%v] Run logging completed. Total duration: %v\n",
		time.Now().Format("15:04:05.000"), time.Since(r.startTime).Round(time.Millisecond), time.Since(r.startTime))
	if r.file != nil {
		r.file.Sync()
		r.file.Close()
		r.file = nil
	}
	r.out = nil
}
