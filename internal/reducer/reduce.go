package reducer

import "github.com/kanata-switcher/kanata-focusd/internal/rules"

// Reduce diffs plan against prevManagedVks and returns the ordered wire
// actions required to converge Kanata's held-key state, along with the
// managed-VK set that holds after those actions are applied.
//
// Procedure:
//  1. newManagedVks is plan's ordered PressVk names (duplicates preserved).
//  2. Every key held in prevManagedVks but absent from newManagedVks is
//     released, bottom-to-top (i.e. in the reverse of the order it was
//     originally pressed in).
//  3. plan's entries are then replayed in order: ChangeLayer passes
//     through unconditionally; PressVk is suppressed if the key was
//     already held (re-press is a no-op); RawVkAction always passes
//     through, since unmanaged keys carry no held-state to suppress
//     against.
//  4. nextManagedVks is newManagedVks.
func Reduce(prevManagedVks []string, plan rules.FocusActions) (wireActions []WireAction, nextManagedVks []string) {
	nextManagedVks = plan.PressVks()

	stillHeld := make(map[string]bool, len(nextManagedVks))
	for _, k := range nextManagedVks {
		stillHeld[k] = true
	}

	for i := len(prevManagedVks) - 1; i >= 0; i-- {
		k := prevManagedVks[i]
		if !stillHeld[k] {
			wireActions = append(wireActions, vkWire(k, rules.VkRelease))
		}
	}

	wasHeld := make(map[string]bool, len(prevManagedVks))
	for _, k := range prevManagedVks {
		wasHeld[k] = true
	}

	for _, entry := range plan {
		switch entry.Kind {
		case rules.EntryChangeLayer:
			wireActions = append(wireActions, changeLayerWire(entry.Layer))
		case rules.EntryPressVk:
			if !wasHeld[entry.Name] {
				wireActions = append(wireActions, vkWire(entry.Name, rules.VkPress))
			}
		case rules.EntryRawVkAction:
			wireActions = append(wireActions, vkWire(entry.Name, entry.Action))
		}
	}

	return wireActions, nextManagedVks
}
