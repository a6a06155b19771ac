package confirm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jewelryops/opsagent/tool"
)

func TestGateStaticClassification(t *testing.T) {
	g := NewGate()

	readOnly := tool.Descriptor{Name: "get_order"}
	mutating := tool.Descriptor{Name: "cancel_order", Mutating: true}

	assert.Equal(t, AutoApprove, g.Classify(readOnly, nil))
	assert.Equal(t, NeedsConfirmation, g.Classify(mutating, nil))
}

func TestGateOverrideWinsOverStaticFlag(t *testing.T) {
	g := NewGate()
	desc := tool.Descriptor{Name: "add_note", Mutating: true}

	// Notes are low risk; relax the static rule for this one tool.
	g.Override("add_note", func(d tool.Descriptor, args map[string]any) Verdict {
		return AutoApprove
	})

	assert.Equal(t, AutoApprove, g.Classify(desc, nil))

	// Other mutating tools keep the default rule.
	assert.Equal(t, NeedsConfirmation, g.Classify(tool.Descriptor{Name: "cancel_order", Mutating: true}, nil))
}

func TestQuantityThreshold(t *testing.T) {
	desc := tool.Descriptor{Name: "update_inventory", Mutating: true}
	classify := QuantityThreshold("quantity_delta", 10)

	tests := []struct {
		name string
		args map[string]any
		want Verdict
	}{
		{"small positive delta", map[string]any{"quantity_delta": float64(3)}, AutoApprove},
		{"small negative delta", map[string]any{"quantity_delta": float64(-5)}, AutoApprove},
		{"at the limit", map[string]any{"quantity_delta": float64(10)}, AutoApprove},
		{"large delta", map[string]any{"quantity_delta": float64(250)}, NeedsConfirmation},
		{"zeroing stock", map[string]any{"quantity_delta": float64(0)}, NeedsConfirmation},
		{"missing field", map[string]any{}, NeedsConfirmation},
		{"non-numeric field", map[string]any{"quantity_delta": "lots"}, NeedsConfirmation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(desc, tt.args))
		})
	}
}

func TestReasonNamesTheTool(t *testing.T) {
	r := Reason(tool.Descriptor{Name: "cancel_order", Mutating: true})
	assert.Contains(t, r, "cancel_order")
}
