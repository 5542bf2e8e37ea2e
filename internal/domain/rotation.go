package domain

// RotationState is the ordered account sequence and cursor consumed by the
// round-robin selection strategy.
type RotationState struct {
	Order  []AccountID
	Cursor int
}

func (r *RotationState) Append(id AccountID) {
	for _, existing := range r.Order {
		if existing == id {
			return
		}
	}

	r.Order = append(r.Order, id)
}

func (r *RotationState) Delete(id AccountID) {
	order := make([]AccountID, 0, len(r.Order))
	for _, existing := range r.Order {
		if existing == id {
			continue
		}
		order = append(order, existing)
	}

	r.Order = order
	r.Clamp()
}

// Clamp keeps the cursor inside the order bounds after membership changes.
func (r *RotationState) Clamp() {
	if len(r.Order) == 0 {
		r.Cursor = 0
		return
	}
	if r.Cursor < 0 || r.Cursor >= len(r.Order) {
		r.Cursor = 0
	}
}
