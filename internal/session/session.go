// Package session ties the engine together: one Session owns one interaction
// tree, one pattern learner, and one snapshot store for its lifetime, plus an
// optional action journal. All bookkeeping runs through the Session so the
// core packages stay single-threaded; the Session itself is safe for the
// autosaver to call from another goroutine.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/perchlabs/echotree/internal/actionkey"
	"github.com/perchlabs/echotree/internal/config"
	"github.com/perchlabs/echotree/internal/echo"
	"github.com/perchlabs/echotree/internal/journal"
	"github.com/perchlabs/echotree/internal/learner"
	"github.com/perchlabs/echotree/internal/logging"
	"github.com/perchlabs/echotree/internal/snapshot"
	"github.com/perchlabs/echotree/internal/tree"
)

// ErrClosed is returned when an operation is attempted on a closed Session.
var ErrClosed = errors.New("session closed")

const (
	// historyCap/historyKeep bound the rolling action history: when the
	// window exceeds historyCap entries it is trimmed to the most recent
	// historyKeep.
	historyCap  = 100
	historyKeep = 50

	// predictionWindow is how many trailing history keys are prepended to a
	// new action's key when querying the learner for an echo.
	predictionWindow = 5

	// analyzeWindow and the confidence bounds drive the end-of-turn pattern
	// analysis log lines.
	analyzeWindow  = 3
	highConfidence = 0.8
	lowConfidence  = 0.3
)

// Options configure Session construction beyond the static config.
type Options struct {
	// Source labels where the session's actions come from ("interactive",
	// "script", ...). Recorded in the journal.
	Source string

	// DiscardCorrupt starts from an empty snapshot instead of failing when
	// the snapshot file is present but corrupt.
	DiscardCorrupt bool
}

// Session is the explicit owner of one engine instance. Create with New,
// drive with StartTurn/Record/EndTurn, and always Close to trigger the final
// save.
type Session struct {
	id     string
	source string
	log    *slog.Logger

	store     *snapshot.Store
	journal   *journal.Store // nil when journaling is disabled
	saveEvery int

	mu      sync.Mutex
	tree    *tree.Tree
	learner *learner.Learner
	gate    *echo.Gate
	turnKey actionkey.Key   // context key of the in-progress turn, empty between turns
	turnSeq []actionkey.Key // keys recorded during the in-progress turn
	history []actionkey.Key // rolling window of recent keys across turns
	actions int             // total actions recorded, monotonic
	turns   int
	closed  bool
}

// New builds a Session from the config: loads the snapshot (fresh when the
// file is missing), opens the journal when enabled, and applies the echo
// settings. A corrupt snapshot fails construction unless opts.DiscardCorrupt
// is set, in which case the session starts empty and the bad file is left in
// place until the next save overwrites it.
func New(cfg *config.Config, opts Options) (*Session, error) {
	store := snapshot.NewStore(cfg.Snapshot.Path)

	snap, err := store.Load()
	if err != nil {
		if !opts.DiscardCorrupt || !errors.Is(err, snapshot.ErrCorruptSnapshot) {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		logging.Warn("discarding corrupt snapshot",
			slog.String("path", cfg.Snapshot.Path), slog.Any("error", err))
		snap = snapshot.Empty()
	}

	tr, ln, err := snap.Restore(cfg.Tree.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}

	gate := echo.NewGate(cfg.Echo.Threshold, cfg.Echo.MinSamples)
	gate.SetEnabled(cfg.Echo.Enabled)

	s := &Session{
		id:        uuid.New().String(),
		source:    opts.Source,
		store:     store,
		saveEvery: cfg.Snapshot.SaveEvery,
		tree:      tr,
		learner:   ln,
		gate:      gate,
	}
	s.log = logging.WithComponent("session").With(slog.String("session_id", s.id))

	if cfg.Journal.Enabled {
		jnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		rec := &journal.SessionRecord{ID: s.id, Source: opts.Source, SnapshotPath: cfg.Snapshot.Path}
		if err := jnl.StartSession(rec); err != nil {
			_ = jnl.Close()
			return nil, fmt.Errorf("failed to register journal session: %w", err)
		}
		s.journal = jnl
	}

	s.log.Info("session started",
		slog.String("snapshot", cfg.Snapshot.Path),
		slog.Int("patterns", ln.Len()),
		slog.Bool("echo", gate.Enabled()))
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Source returns the session's action-source label.
func (s *Session) Source() string { return s.source }

// StartTurn opens a new turn context derived from the user input. The turn's
// actions chain under the turn key in the tree; any previous turn is left as
// recorded but no longer extended.
func (s *Session) StartTurn(input string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.turnKey = actionkey.TurnKey(input)
	s.turnSeq = nil
	s.turns++
	s.log.Debug("turn started",
		slog.String("turn_key", string(s.turnKey)), slog.Int("turn", s.turns))
}

// Record books one executed action and its verdict. The learner is queried
// with the recent history plus the new key before any state changes, so the
// returned suggestion reflects only what was known beforehand. The action is
// then recorded into the tree along the current turn path, the path is
// extended, the trailing bigram is observed, and the event is journaled.
// Every saveEvery-th action triggers a snapshot save; a failed cadence save
// is logged and retried at the next interval rather than failing the record.
//
// The suggestion is nil when the echo gate declines. The error is non-nil
// only for malformed raw actions or a closed session.
func (s *Session) Record(a actionkey.Action, succeeded bool) (*echo.Suggestion, error) {
	key, err := actionkey.Encode(a)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var suggestion *echo.Suggestion
	query := append(s.recentTail(predictionWindow), key)
	if sug, ok := s.gate.Decide(s.learner.Predict(query)); ok {
		suggestion = &sug
		s.log.Debug("echo emitted",
			slog.String("pattern", sug.Pattern),
			slog.Float64("probability", sug.Probability),
			slog.Int("samples", sug.SampleSize))
	}

	s.tree.Record(s.currentPath(), key, succeeded)
	s.turnSeq = append(s.turnSeq, key)

	s.history = append(s.history, key)
	if len(s.history) > historyCap {
		s.history = append([]actionkey.Key(nil), s.history[len(s.history)-historyKeep:]...)
	}
	if len(s.history) >= 2 {
		s.learner.Observe(s.history[len(s.history)-2:], succeeded)
	}

	s.actions++
	s.journalEvent(a, key, succeeded, suggestion)

	if s.saveEvery > 0 && s.actions%s.saveEvery == 0 {
		if err := s.saveLocked(); err != nil {
			s.log.Warn("periodic save failed", slog.Any("error", err))
		}
	}
	return suggestion, nil
}

// TurnAnalysis flags a notably high or low predicted confidence for the
// trailing actions of a completed turn.
type TurnAnalysis struct {
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
	High       bool    `json:"high"`
}

// EndTurn completes the in-progress turn: the recent action tail is analyzed
// against what was learned so far, then the whole turn sequence is observed
// as one pattern with the given verdict. The analysis is nil unless the tail
// matched with notably high or low confidence. A turn with no recorded
// actions is discarded.
func (s *Session) EndTurn(succeeded bool) *TurnAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var analysis *TurnAnalysis
	if len(s.turnSeq) > 0 {
		analysis = s.analyzeRecent()
		s.learner.Observe(s.turnSeq, succeeded)
	}
	s.turnKey = ""
	s.turnSeq = nil
	return analysis
}

// analyzeRecent reports when the trailing action window matches a pattern
// with notably high or low confidence. Caller holds the mutex.
func (s *Session) analyzeRecent() *TurnAnalysis {
	if len(s.history) < analyzeWindow {
		return nil
	}
	recent := s.recentTail(analyzeWindow)
	p := s.learner.Predict(recent)
	if p.Match == learner.MatchNone {
		return nil
	}
	pattern := actionkey.JoinKeys(recent)
	switch {
	case p.Probability >= highConfidence:
		s.log.Info("high success pattern detected",
			slog.String("pattern", pattern),
			slog.Float64("confidence", p.Probability))
		return &TurnAnalysis{Pattern: pattern, Confidence: p.Probability, High: true}
	case p.Probability < lowConfidence:
		s.log.Warn("low success pattern detected",
			slog.String("pattern", pattern),
			slog.Float64("confidence", p.Probability))
		return &TurnAnalysis{Pattern: pattern, Confidence: p.Probability}
	}
	return nil
}

// currentPath is the tree path for the next recorded action: the turn key, if
// a turn is open, followed by the keys already recorded this turn. Caller
// holds the mutex. The returned slice is freshly allocated.
func (s *Session) currentPath() []actionkey.Key {
	path := make([]actionkey.Key, 0, len(s.turnSeq)+1)
	if s.turnKey != "" {
		path = append(path, s.turnKey)
	}
	return append(path, s.turnSeq...)
}

// recentTail copies the last n history keys. Caller holds the mutex.
func (s *Session) recentTail(n int) []actionkey.Key {
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	return append([]actionkey.Key(nil), s.history[start:]...)
}

func (s *Session) journalEvent(a actionkey.Action, key actionkey.Key, succeeded bool, sug *echo.Suggestion) {
	if s.journal == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		s.log.Warn("failed to encode action for journal", slog.Any("error", err))
	}
	ev := &journal.Event{
		SessionID: s.id,
		Seq:       s.actions,
		TurnKey:   string(s.turnKey),
		ActionKey: string(key),
		Action:    string(raw),
		Succeeded: succeeded,
	}
	if sug != nil {
		ev.Echo = sug.String()
	}
	if err := s.journal.AppendEvent(ev); err != nil {
		s.log.Warn("failed to journal action", slog.Any("error", err))
	}
}

// SetEchoEnabled toggles suggestion output at runtime.
func (s *Session) SetEchoEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.SetEnabled(on)
	s.log.Info("echo toggled", slog.Bool("enabled", on))
}

// EchoEnabled reports whether suggestions are currently emitted.
func (s *Session) EchoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Enabled()
}

// Actions returns the total number of actions recorded so far.
func (s *Session) Actions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions
}

// Turns returns the number of turns started so far.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// Summary describes a session's learned state for reporting.
type Summary struct {
	SessionID   string                `json:"session_id"`
	Source      string                `json:"source,omitempty"`
	Actions     int                   `json:"actions"`
	Turns       int                   `json:"turns"`
	Depth       int                   `json:"depth"` // current turn path depth
	Patterns    int                   `json:"patterns"`
	EchoEnabled bool                  `json:"echo_enabled"`
	Tree        tree.Summary          `json:"tree"`
	TopPatterns []learner.PatternStat `json:"top_patterns,omitempty"`
}

// Summary reports the session's counters, tree statistics, and the top-K
// learned patterns. Read-only.
func (s *Session) Summary(topK int) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		SessionID:   s.id,
		Source:      s.source,
		Actions:     s.actions,
		Turns:       s.turns,
		Depth:       len(s.currentPath()),
		Patterns:    s.learner.Len(),
		EchoEnabled: s.gate.Enabled(),
		Tree:        s.tree.Summary(topK),
		TopPatterns: s.learner.Top(topK),
	}
}

// Save captures a snapshot of the live state and writes it through the store.
// The capture is a deep copy, so mutations after Save returns never affect
// the bytes written.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.saveLocked()
}

func (s *Session) saveLocked() error {
	if err := s.store.Save(snapshot.Capture(s.tree, s.learner)); err != nil {
		return err
	}
	s.log.Debug("snapshot saved",
		slog.String("path", s.store.Path()), slog.Int("actions", s.actions))
	return nil
}

// Close performs the final save, finalizes the journal session, and marks the
// Session unusable. Close is idempotent; the first error wins.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.saveLocked(); err != nil {
		firstErr = err
	}
	if s.journal != nil {
		if err := s.journal.EndSession(s.id, s.actions, s.turns); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.log.Info("session closed",
		slog.Int("actions", s.actions), slog.Int("turns", s.turns))
	return firstErr
}
