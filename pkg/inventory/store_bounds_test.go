package inventory

import "testing"

// TestNextLoaned_Invariant exercises S1 (0 <= loaned <= quantity after every
// operation) directly against the pure bounds check the SERIALIZABLE
// transaction in AdjustLoaned relies on.
func TestNextLoaned_Invariant(t *testing.T) {
	tests := []struct {
		name                    string
		loaned, delta, quantity int
		wantOK                  bool
		wantNext                int
	}{
		{"reserve within available", 2, 3, 10, true, 5},
		{"reserve exactly to capacity", 7, 3, 10, true, 10},
		{"reserve past capacity rejected", 8, 3, 10, false, 0},
		{"release within loaned", 5, -2, 10, true, 3},
		{"release past zero rejected", 1, -2, 10, false, 0},
		{"release exactly to zero", 2, -2, 10, true, 0},
		{"zero delta is a no-op", 4, 0, 10, true, 4},
		{"zero quantity stock rejects any reserve", 0, 1, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextLoaned(tt.loaned, tt.delta, tt.quantity)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.wantNext {
				t.Errorf("next = %d, want %d", got, tt.wantNext)
			}
			if ok && (got < 0 || got > tt.quantity) {
				t.Errorf("invariant violated: loaned=%d outside [0, %d]", got, tt.quantity)
			}
		})
	}
}

// TestNextLoaned_NeverBreaksInvariant fuzzes a range of loaned/delta/quantity
// combinations and asserts nextLoaned never reports a result outside
// [0, quantity] as ok.
func TestNextLoaned_NeverBreaksInvariant(t *testing.T) {
	for quantity := 0; quantity <= 5; quantity++ {
		for loaned := 0; loaned <= quantity; loaned++ {
			for delta := -quantity - 1; delta <= quantity+1; delta++ {
				next, ok := nextLoaned(loaned, delta, quantity)
				if ok && (next < 0 || next > quantity) {
					t.Fatalf("invariant violated: loaned=%d delta=%d quantity=%d -> next=%d",
						loaned, delta, quantity, next)
				}
			}
		}
	}
}
