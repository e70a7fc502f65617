// Package reducer diffs a focus-match plan against the currently held
// managed virtual keys and produces the ordered wire actions Kanata must
// receive to converge state, per the focus-reducer procedure.
package reducer

import "github.com/kanata-switcher/kanata-focusd/internal/rules"

// WireActionKind tags the variant of a single WireAction.
type WireActionKind int

const (
	WireChangeLayer WireActionKind = iota
	WireVkAction
)

// WireAction is one action destined for the Kanata TCP client, already
// resolved to exactly what must be sent: a layer switch, or a VK action.
// Unlike rules.PlanEntry it carries no ambiguity between managed and
// unmanaged keys — by the time a WireAction exists, that distinction has
// already been applied.
type WireAction struct {
	Kind   WireActionKind
	Layer  string         // set when Kind == WireChangeLayer
	Name   string         // set when Kind == WireVkAction
	Action rules.VkAction // set when Kind == WireVkAction
}

func changeLayerWire(layer string) WireAction {
	return WireAction{Kind: WireChangeLayer, Layer: layer}
}

func vkWire(name string, action rules.VkAction) WireAction {
	return WireAction{Kind: WireVkAction, Name: name, Action: action}
}
