package idhash

import "testing"

func TestComputeTrialID(t *testing.T) {
	tests := []struct {
		name   string
		cycle  int64
		seq    int
		symbol string
	}{
		{name: "first trial of a cycle", cycle: 1, seq: 0, symbol: "BTCUSDT"},
		{name: "later trial same cycle", cycle: 1, seq: 9, symbol: "BTCUSDT"},
		{name: "different symbol", cycle: 1, seq: 0, symbol: "ETHUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTrialID(tt.cycle, tt.seq, tt.symbol)
			if len(got) != 64 {
				t.Errorf("ComputeTrialID() length = %d, want 64", len(got))
			}

			got2 := ComputeTrialID(tt.cycle, tt.seq, tt.symbol)
			if got != got2 {
				t.Errorf("ComputeTrialID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTrialID_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for cycle := int64(1); cycle <= 3; cycle++ {
		for seq := 0; seq < 10; seq++ {
			id := ComputeTrialID(cycle, seq, "BTCUSDT")
			if seen[id] {
				t.Fatalf("duplicate trial id for cycle=%d seq=%d", cycle, seq)
			}
			seen[id] = true
		}
	}
}
