package matcher

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

type LogMode int

const (
	LogModeQuiet LogMode = iota
	LogModeSummary
	LogModeVerbose
)

func ParseLogMode(input string) LogMode {
	switch strings.ToLower(input) {
	case "summary":
		return LogModeSummary
	case "verbose":
		return LogModeVerbose
	default:
		return LogModeQuiet
	}
}

// Logger reports accepted pairs. In verbose mode each pair is also appended
// as JSON to filePath when one is set.
type Logger struct {
	mode     LogMode
	filePath string
	mu       sync.Mutex
}

func NewLogger(mode LogMode, filePath string) *Logger {
	return &Logger{mode: mode, filePath: filePath}
}

func (l *Logger) Mode() LogMode {
	if l == nil {
		return LogModeQuiet
	}
	return l.mode
}

func (l *Logger) Enabled() bool {
	return l != nil && l.mode != LogModeQuiet
}

func (l *Logger) LogMatch(pair *models.MatchedPair, threshold float64) {
	if !l.Enabled() || pair == nil {
		return
	}
	switch l.mode {
	case LogModeSummary:
		logging.Infof("[matcher] %s %q -> %q score=%.1f threshold=%.1f",
			pair.Method, pair.A.RawTitle, pair.B.RawTitle, pair.Score, threshold)
	case LogModeVerbose:
		logging.With(map[string]any{
			"method":    pair.Method,
			"score":     pair.Score,
			"threshold": threshold,
			"a_id":      pair.A.Key(),
			"a_key":     pair.A.NormalizedKey,
			"b_id":      pair.B.Key(),
			"b_key":     pair.B.NormalizedKey,
		}).Infof("[matcher] %q -> %q", pair.A.RawTitle, pair.B.RawTitle)
		l.appendToFile(pair, threshold)
	}
}

func (l *Logger) appendToFile(pair *models.MatchedPair, threshold float64) {
	if l.filePath == "" {
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"threshold": threshold,
		"pair":      pair,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		logging.Errorf("[matcher] log file marshal error: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Errorf("[matcher] log file open error: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Errorf("[matcher] log file write error: %v", err)
	}
}
