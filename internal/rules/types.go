// Package rules parses a declarative window-focus rule set and matches
// focus events against it to produce an ordered Kanata action plan.
package rules

import "regexp"

// VkAction is the action applied to a named virtual key.
type VkAction int

const (
	VkPress VkAction = iota
	VkRelease
	VkTap
	VkToggle
)

func (a VkAction) String() string {
	switch a {
	case VkPress:
		return "Press"
	case VkRelease:
		return "Release"
	case VkTap:
		return "Tap"
	case VkToggle:
		return "Toggle"
	default:
		return "Unknown"
	}
}

// RawVk is a single fire-and-forget (name, action) pair attached to a rule.
type RawVk struct {
	Name   string
	Action VkAction
}

// FocusEvent is the (class, title) pair describing the focused window.
// The zero value, FocusEvent{}, denotes "no focused window".
type FocusEvent struct {
	WindowClass string
	WindowTitle string
}

// IsUnfocused reports whether e represents the "no window focused" sentinel.
func (e FocusEvent) IsUnfocused() bool {
	return e.WindowClass == "" && e.WindowTitle == ""
}

// kind distinguishes the three rule variants described in the rule model.
type kind int

const (
	kindDefault kind = iota
	kindNativeTerminal
	kindWindow
)

// Rule is a single parsed rule. Which fields are meaningful depends on its
// kind; Load enforces the variant invariants at parse time so Match never
// has to re-validate them.
type Rule struct {
	kind kind

	// SourceIndex is the rule's position in the original configuration list,
	// used only to identify the rule in error messages.
	SourceIndex int

	Layer       string
	VirtualKey  string
	RawActions  []RawVk
	Fallthrough bool

	classPattern *regexp.Regexp
	titlePattern *regexp.Regexp
}

// HasLayer reports whether the rule names a layer to switch to.
func (r Rule) HasLayer() bool { return r.Layer != "" }

// HasVirtualKey reports whether the rule names a managed virtual key.
func (r Rule) HasVirtualKey() bool { return r.VirtualKey != "" }

// PlanEntryKind tags the variant of a single PlanEntry.
type PlanEntryKind int

const (
	EntryChangeLayer PlanEntryKind = iota
	EntryPressVk
	EntryRawVkAction
)

// PlanEntry is one ordered step of a FocusActions plan.
type PlanEntry struct {
	Kind   PlanEntryKind
	Layer  string   // set when Kind == EntryChangeLayer
	Name   string   // set when Kind == EntryPressVk or EntryRawVkAction
	Action VkAction // set when Kind == EntryRawVkAction
}

// ChangeLayer builds a PlanEntry that switches Kanata's base layer.
func ChangeLayer(layer string) PlanEntry { return PlanEntry{Kind: EntryChangeLayer, Layer: layer} }

// PressVk builds a PlanEntry for a managed virtual key press.
func PressVk(name string) PlanEntry { return PlanEntry{Kind: EntryPressVk, Name: name} }

// RawVkEntry builds a PlanEntry for an unmanaged, fire-and-forget VK action.
func RawVkEntry(name string, action VkAction) PlanEntry {
	return PlanEntry{Kind: EntryRawVkAction, Name: name, Action: action}
}

// FocusActions is the ordered plan produced by matching one focus event
// against a rule Set.
type FocusActions []PlanEntry

// PressVks returns the ordered list of PressVk names in the plan, duplicates
// preserved as-is. This is the "managed VK" projection used by the reducer.
func (p FocusActions) PressVks() []string {
	var out []string
	for _, e := range p {
		if e.Kind == EntryPressVk {
			out = append(out, e.Name)
		}
	}
	return out
}
