package checkout

import "testing"

func TestSplitAmountTenPercent(t *testing.T) {
	fee, payout := SplitAmount(10000)
	if fee != 1000 {
		t.Fatalf("expected fee 1000, got %d", fee)
	}
	if payout != 9000 {
		t.Fatalf("expected payout 9000, got %d", payout)
	}
}

func TestSplitAmountFloorsFee(t *testing.T) {
	cases := []struct {
		gross  int64
		fee    int64
		payout int64
	}{
		{1, 0, 1},
		{9, 0, 9},
		{10, 1, 9},
		{99, 9, 90},
		{105, 10, 95},
		{2999, 299, 2700},
	}
	for _, tc := range cases {
		fee, payout := SplitAmount(tc.gross)
		if fee != tc.fee || payout != tc.payout {
			t.Fatalf("gross %d: expected %d/%d, got %d/%d", tc.gross, tc.fee, tc.payout, fee, payout)
		}
	}
}

func TestSplitAmountPartsSumToGross(t *testing.T) {
	for gross := int64(1); gross <= 5000; gross++ {
		fee, payout := SplitAmount(gross)
		if fee+payout != gross {
			t.Fatalf("gross %d: parts %d + %d do not sum", gross, fee, payout)
		}
		if fee < 0 || payout < 0 {
			t.Fatalf("gross %d: negative part %d/%d", gross, fee, payout)
		}
	}
}
