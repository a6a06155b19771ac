package engine

// Config defines tuning parameters for the orchestration loop.
type Config struct {
	// StepBudget caps decide→execute cycles within a single turn. When the
	// budget is exhausted the turn terminates with FallbackReply. Must be
	// at least 1.
	StepBudget int

	// CompressAfterTurns triggers context compression once more than this
	// many raw turns sit outside the current summary.
	CompressAfterTurns int

	// CompressAfterSteps triggers compression once the uncompressed turns
	// carry more than this many steps in total, regardless of turn count.
	CompressAfterSteps int

	// RecentTurnWindow is how many raw turns stay in the decision context
	// verbatim; everything older is represented by the summary only.
	RecentTurnWindow int

	// MaxConcurrentTurns limits in-flight turns across all sessions.
	// Zero means unlimited.
	MaxConcurrentTurns int

	// EventBufferSize sets the event channel buffer per turn.
	EventBufferSize int

	// SystemPrompt is prepended to every decision context.
	SystemPrompt string

	// FallbackReply is sent when the step budget runs out.
	FallbackReply string
}

// DefaultConfig provides the stock tuning values.
var DefaultConfig = Config{
	StepBudget:         5,
	CompressAfterTurns: 8,
	CompressAfterSteps: 24,
	RecentTurnWindow:   5,
	MaxConcurrentTurns: 10,
	EventBufferSize:    64,
	SystemPrompt:       DefaultSystemPrompt,
	FallbackReply:      "I wasn't able to complete that request. Could you rephrase or narrow it down?",
}

// DefaultSystemPrompt frames the assistant's role for the decision oracle.
const DefaultSystemPrompt = `You are a support assistant for a jewelry retailer. You help staff look up customers, orders, inventory and notes, and you can perform changes such as cancelling orders or adjusting stock. Use the available tools to investigate before answering. Reference records by their identifiers (customer ids like cust_7, order ids like ORD-102, SKUs like RING-101). Any change to business records requires explicit user confirmation before it is carried out.`

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.StepBudget <= 0 {
		c.StepBudget = d.StepBudget
	}
	if c.CompressAfterTurns <= 0 {
		c.CompressAfterTurns = d.CompressAfterTurns
	}
	if c.CompressAfterSteps <= 0 {
		c.CompressAfterSteps = d.CompressAfterSteps
	}
	if c.RecentTurnWindow <= 0 {
		c.RecentTurnWindow = d.RecentTurnWindow
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = d.EventBufferSize
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	if c.FallbackReply == "" {
		c.FallbackReply = d.FallbackReply
	}
	return c
}
