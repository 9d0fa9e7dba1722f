// Package replay reads recorded sessions back out of the journal, either
// through a programmatic player that feeds events to a callback or through an
// interactive terminal viewer for stepping along the action stream.
package replay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/perchlabs/echotree/internal/journal"
)

// Options configures playback.
type Options struct {
	StartAt int     // First action sequence number to replay (0 = from the start)
	StopAt  int     // Last action sequence number to replay, inclusive (0 = to the end)
	Speed   float64 // Playback speed multiplier over recorded timing (0 = as fast as possible)
	Verbose bool    // Include turn keys and full echo text when formatting
}

// DefaultOptions returns non-real-time playback of the whole session.
func DefaultOptions() *Options {
	return &Options{
		StartAt: 0,
		StopAt:  0,
		Speed:   0,
		Verbose: false,
	}
}

// Callback is invoked for each replayed event.
type Callback func(ev *journal.Event, index, total int) error

// Player replays one recorded session.
type Player struct {
	session  *journal.SessionRecord
	events   []*journal.Event
	options  *Options
	callback Callback
}

// NewPlayer loads a session and its event stream from the journal.
func NewPlayer(store *journal.Store, sessionID string, options *Options) (*Player, error) {
	if options == nil {
		options = DefaultOptions()
	}

	sess, err := store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	events, err := store.Events(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for session %s: %w", sessionID, err)
	}

	return &Player{
		session: sess,
		events:  events,
		options: options,
	}, nil
}

// OnEvent sets the replay callback.
func (p *Player) OnEvent(callback Callback) {
	p.callback = callback
}

// Play replays the recorded events in sequence order. When Speed is positive
// the gaps between recorded timestamps are reproduced, scaled by the
// multiplier; otherwise events are delivered back to back.
func (p *Player) Play(ctx context.Context) error {
	total := len(p.events)
	if total == 0 {
		return nil
	}

	var prevTime time.Time
	for i, ev := range p.events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.options.StartAt > 0 && ev.Seq < p.options.StartAt {
			continue
		}
		if p.options.StopAt > 0 && ev.Seq > p.options.StopAt {
			break
		}

		if p.options.Speed > 0 && !prevTime.IsZero() {
			delay := ev.CreatedAt.Sub(prevTime)
			scaled := time.Duration(float64(delay) / p.options.Speed)
			if scaled > 0 {
				time.Sleep(scaled)
			}
		}
		prevTime = ev.CreatedAt

		if p.callback != nil {
			if err := p.callback(ev, i, total); err != nil {
				return err
			}
		}
	}

	return nil
}

// Event returns an event by index, or nil when out of range.
func (p *Player) Event(index int) *journal.Event {
	if index < 0 || index >= len(p.events) {
		return nil
	}
	return p.events[index]
}

// EventCount returns the total number of recorded events.
func (p *Player) EventCount() int {
	return len(p.events)
}

// Session returns the session row the player was loaded from.
func (p *Player) Session() *journal.SessionRecord {
	return p.session
}

// FormatEvent renders one recorded action as a single display line. Verbose
// adds the turn key and the full echo text instead of a marker.
func FormatEvent(ev *journal.Event, verbose bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] #%-3d ", ev.CreatedAt.Format("15:04:05"), ev.Seq))
	sb.WriteString(fmt.Sprintf("%s %s", actionIcon(ev.ActionKey), ev.ActionKey))

	if ev.Succeeded {
		sb.WriteString(" ✓")
	} else {
		sb.WriteString(" ✗")
	}

	if verbose && ev.TurnKey != "" {
		sb.WriteString(fmt.Sprintf("  turn=%s", ev.TurnKey))
	}
	if ev.Echo != "" {
		if verbose {
			sb.WriteString("  🔮 " + ev.Echo)
		} else {
			sb.WriteString(" 🔮")
		}
	}

	return sb.String()
}

// actionIcon picks a glyph for an action key's family.
func actionIcon(key string) string {
	switch {
	case strings.HasPrefix(key, "click"), strings.HasPrefix(key, "double_click"), strings.HasPrefix(key, "move"):
		return "🖱"
	case strings.HasPrefix(key, "type_"):
		return "⌨"
	case strings.HasPrefix(key, "scroll_"):
		return "📜"
	case strings.HasPrefix(key, "drag_"):
		return "✋"
	case strings.HasPrefix(key, "function_"):
		return "⚙"
	case strings.HasPrefix(key, "wait"):
		return "⏳"
	default:
		return "•"
	}
}

// truncate shortens a string to maxLen with an ellipsis, flattening newlines.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// Report aggregates a recorded session's outcomes.
type Report struct {
	Session     *journal.SessionRecord `json:"session"`
	Events      int                    `json:"events"`
	Succeeded   int                    `json:"succeeded"`
	Failed      int                    `json:"failed"`
	SuccessRate float64                `json:"success_rate"`
	Turns       int                    `json:"turns"`
	Echoes      int                    `json:"echoes"`
	EchoHits    int                    `json:"echo_hits"` // echoed actions that went on to succeed
	TopActions  []ActionCount          `json:"top_actions"`
}

// ActionCount is one action key's tally within a session.
type ActionCount struct {
	Key       string `json:"key"`
	Count     int    `json:"count"`
	Succeeded int    `json:"succeeded"`
}

// maxReportActions caps the per-key breakdown in a report.
const maxReportActions = 10

// Analyze tallies a session's event stream. Turns are counted from turn key
// transitions in the stream itself, so unfinished sessions report correctly
// even though their session row counters were never finalized.
func Analyze(sess *journal.SessionRecord, events []*journal.Event) *Report {
	r := &Report{
		Session: sess,
		Events:  len(events),
	}

	counts := make(map[string]*ActionCount)
	prevTurn := ""
	for _, ev := range events {
		if ev.Succeeded {
			r.Succeeded++
		} else {
			r.Failed++
		}
		if ev.TurnKey != "" && ev.TurnKey != prevTurn {
			r.Turns++
			prevTurn = ev.TurnKey
		}
		if ev.Echo != "" {
			r.Echoes++
			if ev.Succeeded {
				r.EchoHits++
			}
		}

		c, ok := counts[ev.ActionKey]
		if !ok {
			c = &ActionCount{Key: ev.ActionKey}
			counts[ev.ActionKey] = c
		}
		c.Count++
		if ev.Succeeded {
			c.Succeeded++
		}
	}

	if r.Events > 0 {
		r.SuccessRate = float64(r.Succeeded) / float64(r.Events)
	}

	for _, c := range counts {
		r.TopActions = append(r.TopActions, *c)
	}
	sort.Slice(r.TopActions, func(i, j int) bool {
		if r.TopActions[i].Count != r.TopActions[j].Count {
			return r.TopActions[i].Count > r.TopActions[j].Count
		}
		return r.TopActions[i].Key < r.TopActions[j].Key
	})
	if len(r.TopActions) > maxReportActions {
		r.TopActions = r.TopActions[:maxReportActions]
	}

	return r
}

// FormatReport renders an analysis report for terminal display.
func FormatReport(r *Report) string {
	var sb strings.Builder

	sess := r.Session

	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString("SESSION REPLAY REPORT\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	sb.WriteString(fmt.Sprintf("Session:   %s\n", sess.ID))
	if sess.Source != "" {
		sb.WriteString(fmt.Sprintf("Source:    %s\n", sess.Source))
	}
	sb.WriteString(fmt.Sprintf("Started:   %s\n", sess.StartedAt.Format("2006-01-02 15:04:05")))
	if sess.EndedAt != nil {
		sb.WriteString(fmt.Sprintf("Duration:  %s\n", sess.EndedAt.Sub(sess.StartedAt).Round(time.Second)))
	} else {
		sb.WriteString("Duration:  (not finished)\n")
	}
	sb.WriteString(fmt.Sprintf("Events:    %d\n", r.Events))
	sb.WriteString("\n")

	sb.WriteString("OUTCOMES\n")
	sb.WriteString("───────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  Turns:       %d\n", r.Turns))
	sb.WriteString(fmt.Sprintf("  Succeeded:   %d\n", r.Succeeded))
	sb.WriteString(fmt.Sprintf("  Failed:      %d\n", r.Failed))
	sb.WriteString(fmt.Sprintf("  Success:     %.1f%%\n", r.SuccessRate*100))
	sb.WriteString("\n")

	if r.Echoes > 0 {
		sb.WriteString("ECHOES\n")
		sb.WriteString("───────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("  Emitted:     %d\n", r.Echoes))
		sb.WriteString(fmt.Sprintf("  Succeeded:   %d (%.1f%%)\n", r.EchoHits, float64(r.EchoHits)/float64(r.Echoes)*100))
		sb.WriteString("\n")
	}

	if len(r.TopActions) > 0 {
		sb.WriteString("TOP ACTIONS\n")
		sb.WriteString("───────────────────────────────────────\n")
		for _, a := range r.TopActions {
			rate := 0.0
			if a.Count > 0 {
				rate = float64(a.Succeeded) / float64(a.Count) * 100
			}
			sb.WriteString(fmt.Sprintf("  %-28s %4d× %5.1f%%\n", a.Key, a.Count, rate))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	return sb.String()
}
