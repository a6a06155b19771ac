// Package compress turns a growing turn history into a bounded
// InvestigationSummary. Once generated, the summary replaces raw turns in
// the context fed to the decision oracle; the full turn sequence stays in
// the session store for audit.
//
// Both implementations are content-preserving by construction: whatever text
// the summarizer produces, identifiers found in the raw turns are merged
// into the summary's structured entity set, so compression never loses an
// order ID or customer ID.
package compress

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jewelryops/opsagent/core"
	"github.com/jewelryops/opsagent/entity"
	"github.com/jewelryops/opsagent/internal/jsonx"
	"github.com/jewelryops/opsagent/logging"
	"github.com/jewelryops/opsagent/oracle"
)

// Compressor produces a new summary from the previous one plus newly
// completed turns. Implementations must be safe to call repeatedly with the
// same inputs.
type Compressor interface {
	Compress(ctx context.Context, prev *core.InvestigationSummary, turns []core.Turn) (*core.InvestigationSummary, error)
}

// maxSummaryText bounds the summary text so the summary itself cannot grow
// without limit (the original system kept 500 characters).
const maxSummaryText = 500

// truncate bounds s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// harvestEntities scans every textual surface of the given turns: user
// messages, replies, tool arguments and results.
func harvestEntities(prev *core.InvestigationSummary, turns []core.Turn) entity.Set {
	var set entity.Set
	if prev != nil {
		set = set.Merge(prev.Entities)
	}
	for _, t := range turns {
		set = set.Merge(entity.Extract(t.UserMessage))
		set = set.Merge(entity.Extract(t.Reply))
		for _, s := range t.Steps {
			set = set.Merge(entity.Extract(string(s.Arguments)))
			set = set.Merge(entity.Extract(string(s.Result)))
		}
	}
	return set
}

// Extractive is the deterministic, oracle-free compressor: it distills tool
// activity and replies mechanically. Used as the fallback when no oracle is
// configured or the oracle summarization fails, and throughout the tests.
type Extractive struct{}

// NewExtractive constructs the deterministic compressor.
func NewExtractive() *Extractive { return &Extractive{} }

// Compress implements Compressor without external calls.
func (e *Extractive) Compress(_ context.Context, prev *core.InvestigationSummary, turns []core.Turn) (*core.InvestigationSummary, error) {
	entities := harvestEntities(prev, turns)

	var findings []string
	if prev != nil {
		findings = append(findings, prev.KeyFindings...)
	}
	for _, t := range turns {
		for _, s := range t.Steps {
			if s.Kind != core.StepToolCall || !s.Executed() {
				continue
			}
			if s.Err != "" {
				findings = append(findings, fmt.Sprintf("%s failed: %s", s.Tool, s.Err))
				continue
			}
			findings = append(findings, fmt.Sprintf("%s returned data", s.Tool))
		}
	}

	var b strings.Builder
	if prev != nil && prev.Text != "" {
		b.WriteString(prev.Text)
		b.WriteString(" ")
	}
	for _, t := range turns {
		if t.Reply == "" {
			continue
		}
		b.WriteString(t.Reply)
		b.WriteString(" ")
	}
	text := truncate(strings.TrimSpace(b.String()), maxSummaryText)

	compressed := len(turns)
	if prev != nil {
		compressed += prev.CompressedTurns
	}
	return &core.InvestigationSummary{
		Text:            text,
		KeyFindings:     findings,
		Entities:        entities,
		CompressedTurns: compressed,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// summaryPayload is the JSON contract the oracle answers the summarization
// prompt with.
type summaryPayload struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
	OpenItems   []string `json:"open_items"`
}

const summarizeSystem = "You summarize support investigations. Analyze the " +
	"conversation history and produce a brief, clear summary of the " +
	"investigation state. Answer with JSON only, keys: summary (string), " +
	"key_findings (array of strings), open_items (array of strings)."

// WithOracle asks the decision oracle to distill the history, then backstops
// the result with structurally harvested entities. Any oracle failure falls
// back to the extractive compressor so compression itself never fails a turn.
type WithOracle struct {
	oracle   oracle.Oracle
	fallback *Extractive
	logger   logging.Logger
}

// NewWithOracle constructs an oracle-backed compressor.
func NewWithOracle(o oracle.Oracle, logger logging.Logger) *WithOracle {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &WithOracle{oracle: o, fallback: NewExtractive(), logger: logger}
}

// Compress implements Compressor.
func (w *WithOracle) Compress(ctx context.Context, prev *core.InvestigationSummary, turns []core.Turn) (*core.InvestigationSummary, error) {
	raw, err := w.oracle.Summarize(ctx, w.buildPrompt(prev, turns))
	if err != nil {
		w.logger.Warn("compress.oracle_failed", "error", err.Error())
		return w.fallback.Compress(ctx, prev, turns)
	}

	var payload summaryPayload
	if err := jsonx.ExtractObject(raw, &payload); err != nil {
		w.logger.Warn("compress.unparseable_summary", "error", err.Error())
		return w.fallback.Compress(ctx, prev, turns)
	}

	text := truncate(payload.Summary, maxSummaryText)
	compressed := len(turns)
	if prev != nil {
		compressed += prev.CompressedTurns
	}
	return &core.InvestigationSummary{
		Text:            text,
		KeyFindings:     payload.KeyFindings,
		OpenItems:       payload.OpenItems,
		Entities:        harvestEntities(prev, turns),
		CompressedTurns: compressed,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func (w *WithOracle) buildPrompt(prev *core.InvestigationSummary, turns []core.Turn) string {
	var b strings.Builder
	b.WriteString(summarizeSystem)
	b.WriteString("\n\n")
	if prev != nil {
		fmt.Fprintf(&b, "Prior summary:\n%s\n\n", prev.Text)
	}
	b.WriteString("New turns:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "user: %s\n", t.UserMessage)
		for _, s := range t.Steps {
			switch s.Kind {
			case core.StepReasoning:
				fmt.Fprintf(&b, "thought: %s\n", s.Rationale)
			case core.StepToolCall:
				if s.Err != "" {
					fmt.Fprintf(&b, "tool %s(%s) error: %s\n", s.Tool, s.Arguments, s.Err)
				} else if s.Confirmation == core.ConfirmationRejected {
					fmt.Fprintf(&b, "tool %s rejected by user\n", s.Tool)
				} else {
					fmt.Fprintf(&b, "tool %s(%s) -> %s\n", s.Tool, s.Arguments, s.Result)
				}
			}
		}
		fmt.Fprintf(&b, "assistant: %s\n", t.Reply)
	}
	return b.String()
}
