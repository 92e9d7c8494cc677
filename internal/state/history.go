package state

// History keeps bounded undo and redo stacks of element-list snapshots.
// When the undo stack is full the oldest snapshot is discarded.
type History struct {
	limit int
	undo  [][]Element
	redo  [][]Element
}

// NewHistory returns a History holding at most limit snapshots per stack.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Record snapshots cur before a mutation and clears the redo stack.
func (h *History) Record(cur []Element) {
	h.undo = pushCapped(h.undo, CloneAll(cur), h.limit)
	h.redo = nil
}

// Undo returns the previous element list, saving cur for Redo. It reports
// false and leaves everything untouched when there is nothing to undo.
func (h *History) Undo(cur []Element) ([]Element, bool) {
	if len(h.undo) == 0 {
		return cur, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = pushCapped(h.redo, CloneAll(cur), h.limit)
	return prev, true
}

// Redo is the inverse of Undo.
func (h *History) Redo(cur []Element) ([]Element, bool) {
	if len(h.redo) == 0 {
		return cur, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = pushCapped(h.undo, CloneAll(cur), h.limit)
	return next, true
}

// Reset empties both stacks.
func (h *History) Reset() {
	h.undo, h.redo = nil, nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

func pushCapped(stack [][]Element, snap []Element, limit int) [][]Element {
	if len(stack) >= limit {
		stack = append(stack[:0], stack[len(stack)-limit+1:]...)
	}
	return append(stack, snap)
}
