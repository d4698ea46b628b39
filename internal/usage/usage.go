// Package usage keeps an append-only JSONL ledger of model calls, one
// record per chat turn or log parse. The ledger is how "what is this
// costing me" gets answered without trusting memory.
package usage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stridecoach/stride/internal/llm"
)

// DefaultMaxSize rotates the ledger before it grows unwieldy.
const DefaultMaxSize = 10 * 1024 * 1024

type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Kind         string    `json:"kind"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Actions      int       `json:"actions"`
}

// Ledger appends records to a JSONL file, rotating to <path>.1 when the
// file exceeds maxSize.
type Ledger struct {
	mu      sync.Mutex
	path    string
	maxSize int64
}

// NewLedger creates a ledger at path. maxSize <= 0 selects the default.
func NewLedger(path string, maxSize int64) *Ledger {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Ledger{path: path, maxSize: maxSize}
}

// Record appends one model call to the ledger.
func (l *Ledger) Record(kind string, u llm.Usage, actions int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if err := l.rotateLocked(); err != nil {
		return err
	}

	rec := Record{
		Timestamp:    time.Now(),
		Kind:         kind,
		Model:        u.Model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD:      u.CostUSD,
		Actions:      actions,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open usage ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

// rotateLocked moves a too-large ledger aside, keeping one generation.
func (l *Ledger) rotateLocked() error {
	info, err := os.Stat(l.path)
	if err != nil || info.Size() < l.maxSize {
		return nil
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return fmt.Errorf("rotate usage ledger: %w", err)
	}
	return nil
}

// MonthToDate sums calls and cost since the first of now's month. Records
// that fail to parse are skipped; a missing ledger means zero usage.
func (l *Ledger) MonthToDate(now time.Time) (calls int, cost float64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("open usage ledger: %w", err)
	}
	defer f.Close()

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if json.Unmarshal(sc.Bytes(), &rec) != nil {
			continue
		}
		if rec.Timestamp.Before(monthStart) {
			continue
		}
		calls++
		cost += rec.CostUSD
	}
	return calls, cost, sc.Err()
}
