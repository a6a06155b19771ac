package oracle

import (
	"fmt"
	"strings"

	"github.com/jewelryops/opsagent/core"
)

// Brief renders the investigation summary and known record identifiers as a
// compact context block. Provider adapters attach it alongside the system
// prompt so compressed history stays visible to the model.
func (dc Context) Brief() string {
	var b strings.Builder
	if dc.Summary != nil && dc.Summary.Text != "" {
		b.WriteString("Investigation so far: ")
		b.WriteString(dc.Summary.Text)
		if len(dc.Summary.KeyFindings) > 0 {
			b.WriteString("\nKey findings: ")
			b.WriteString(strings.Join(dc.Summary.KeyFindings, "; "))
		}
		if len(dc.Summary.OpenItems) > 0 {
			b.WriteString("\nOpen items: ")
			b.WriteString(strings.Join(dc.Summary.OpenItems, "; "))
		}
	}
	if all := dc.Entities.All(); len(all) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Records mentioned: ")
		b.WriteString(strings.Join(all, ", "))
	}
	return b.String()
}

// Observations renders the current turn's steps so the model can react to
// tool results, failures and declined proposals on the next decision.
func (dc Context) Observations() string {
	var b strings.Builder
	for _, s := range dc.Steps {
		if s.Kind != core.StepToolCall {
			continue
		}
		switch {
		case s.Err != "":
			fmt.Fprintf(&b, "Tool %s failed: %s\n", s.Tool, s.Err)
		case s.Result != nil:
			fmt.Fprintf(&b, "Tool %s returned: %s\n", s.Tool, s.Result)
		case s.Confirmation == core.ConfirmationRejected:
			fmt.Fprintf(&b, "The user declined the proposed %s call; do not retry it.\n", s.Tool)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "Observations this turn:\n" + strings.TrimRight(b.String(), "\n")
}
