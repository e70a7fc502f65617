package rules

// Match translates a (event, nativeTTY) observation into an ordered
// FocusActions plan, per the rule-matcher algorithm:
//
//  1. nativeTTY true: emit the NativeTerminalRule's actions if one is
//     configured, else fall back to defaultLayer.
//  2. event is the unfocus sentinel: fall back to defaultLayer.
//  3. Otherwise walk WindowRules top to bottom; the first fallthrough=false
//     match stops evaluation, fallthrough=true matches keep going, and
//     non-matching rules are always skipped regardless of their own
//     fallthrough flag. No match at all falls back to defaultLayer.
//
// defaultLayer is supplied by the caller (the supervisor), which is either
// the Set's configured DefaultRule layer (see HasDefaultRule/DefaultLayer)
// or the layer captured from Kanata's first LayerChange — Match itself is
// pure and makes no connection-state decisions. Given identical (s, event,
// nativeTTY, defaultLayer) the result is always identical.
//
// Within a single rule, entries are ordered ChangeLayer, then PressVk, then
// each RawVkAction in configured order.
func (s *Set) Match(event FocusEvent, nativeTTY bool, defaultLayer string) FocusActions {
	if nativeTTY {
		if s.nativeTerminal != nil {
			return ruleEntries(*s.nativeTerminal)
		}
		return FocusActions{ChangeLayer(defaultLayer)}
	}

	if event.IsUnfocused() {
		return FocusActions{ChangeLayer(defaultLayer)}
	}

	var plan FocusActions
	matchedAny := false
	for _, r := range s.windows {
		if !windowRuleMatches(r, event) {
			continue
		}
		matchedAny = true
		plan = append(plan, ruleEntries(r)...)
		if !r.Fallthrough {
			return plan
		}
	}

	if !matchedAny {
		return FocusActions{ChangeLayer(defaultLayer)}
	}
	return plan
}

func windowRuleMatches(r Rule, event FocusEvent) bool {
	if r.classPattern != nil && !r.classPattern.MatchString(event.WindowClass) {
		return false
	}
	if r.titlePattern != nil && !r.titlePattern.MatchString(event.WindowTitle) {
		return false
	}
	return true
}

// ruleEntries renders a single rule's (layer, vk, raw actions) into plan
// entries in the fixed intra-rule order: layer, then vk, then raw actions.
func ruleEntries(r Rule) FocusActions {
	var entries FocusActions
	if r.HasLayer() {
		entries = append(entries, ChangeLayer(r.Layer))
	}
	if r.HasVirtualKey() {
		entries = append(entries, PressVk(r.VirtualKey))
	}
	for _, raw := range r.RawActions {
		entries = append(entries, RawVkEntry(raw.Name, raw.Action))
	}
	return entries
}
