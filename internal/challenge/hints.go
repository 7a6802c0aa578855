package challenge

// HintTracker reveals a challenge's hints progressively. A revealed hint
// is never re-hidden, and its cost is deducted from the run's achievable
// score.
type HintTracker struct {
	hints    []Hint
	revealed int
}

// NewHintTracker creates a tracker over a definition's hints.
func NewHintTracker(hints []Hint) *HintTracker {
	return &HintTracker{hints: hints}
}

// Reveal uncovers the next hint. The second value is false when every
// hint has already been revealed.
func (t *HintTracker) Reveal() (Hint, bool) {
	if t.revealed >= len(t.hints) {
		return Hint{}, false
	}
	hint := t.hints[t.revealed]
	t.revealed++
	return hint, true
}

// Visible returns all hints revealed so far, in reveal order.
func (t *HintTracker) Visible() []Hint {
	return t.hints[:t.revealed]
}

// Revealed returns how many hints have been consumed.
func (t *HintTracker) Revealed() int {
	return t.revealed
}

// Remaining returns how many hints are still hidden.
func (t *HintTracker) Remaining() int {
	return len(t.hints) - t.revealed
}

// Deduction is the total score cost of the revealed hints.
func (t *HintTracker) Deduction() int {
	total := 0
	for _, hint := range t.hints[:t.revealed] {
		total += hint.Cost
	}
	return total
}
