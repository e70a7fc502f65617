package reducer

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/kanata-switcher/kanata-focusd/internal/rules"
)

// genVkName draws from a small alphabet so Draw'd plans actually exercise
// overlap between prevManagedVks and the new plan's PressVk set.
func genVkName(rt *rapid.T) string {
	return rapid.SampledFrom([]string{"vkA", "vkB", "vkC", "vkD"}).Draw(rt, "vk")
}

func genPlan(rt *rapid.T) rules.FocusActions {
	n := rapid.IntRange(0, 4).Draw(rt, "numPresses")
	plan := rules.FocusActions{rules.ChangeLayer(rapid.SampledFrom([]string{"base", "browser", "term"}).Draw(rt, "layer"))}
	for i := 0; i < n; i++ {
		plan = append(plan, rules.PressVk(genVkName(rt)))
	}
	return plan
}

func genManagedVks(rt *rapid.T) []string {
	n := rapid.IntRange(0, 4).Draw(rt, "numPrevHeld")
	vks := make([]string, n)
	for i := range vks {
		vks[i] = genVkName(rt)
	}
	return vks
}

// TestReduce_EveryReleasePrecedesEveryPress checks the invariant behind
// spec.md's native-terminal raw-passthrough ordering guarantee: within one
// Reduce call, every VkRelease wire action comes before every VkPress wire
// action, so Kanata never observes a held key re-pressed before its
// conflicting sibling has been released.
func TestReduce_EveryReleasePrecedesEveryPress(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prev := genManagedVks(rt)
		plan := genPlan(rt)

		wire, _ := Reduce(prev, plan)

		lastRelease, firstPress := -1, len(wire)
		for i, w := range wire {
			if w.Kind != WireVkAction {
				continue
			}
			if w.Action == rules.VkRelease {
				lastRelease = i
			}
			if w.Action == rules.VkPress && i < firstPress {
				firstPress = i
			}
		}
		if lastRelease != -1 && firstPress != len(wire) {
			if lastRelease > firstPress {
				t.Fatalf("release at %d came after press at %d: %+v", lastRelease, firstPress, wire)
			}
		}
	})
}

// TestReduce_NextManagedVksMatchesPlanPresses checks that the returned
// nextManagedVks is always exactly plan's PressVk names, independent of
// whatever was previously held.
func TestReduce_NextManagedVksMatchesPlanPresses(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prev := genManagedVks(rt)
		plan := genPlan(rt)

		_, next := Reduce(prev, plan)

		if len(next) != len(plan.PressVks()) {
			t.Fatalf("nextManagedVks %v does not match plan presses %v", next, plan.PressVks())
		}
		for i, name := range plan.PressVks() {
			if next[i] != name {
				t.Fatalf("nextManagedVks[%d] = %q, want %q", i, next[i], name)
			}
		}
	})
}

// TestReduce_IdempotentWhenReapplied checks spec.md §8's reducer-idempotency
// property: reducing the same plan a second time, starting from the managed
// set the first call produced, yields no VkPress/VkRelease wire actions
// (only ChangeLayer, which is always re-sent since Kanata's change-layer is
// itself idempotent and carries no suppressible state).
func TestReduce_IdempotentWhenReapplied(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prev := genManagedVks(rt)
		plan := genPlan(rt)

		_, next := Reduce(prev, plan)
		wire, nextAgain := Reduce(next, plan)

		for _, w := range wire {
			if w.Kind == WireVkAction && w.Action != rules.VkTap && w.Action != rules.VkToggle {
				t.Fatalf("re-applying the same plan from its own managed set emitted %+v", w)
			}
		}
		if len(nextAgain) != len(next) {
			t.Fatalf("managed set drifted on re-application: %v -> %v", next, nextAgain)
		}
	})
}
