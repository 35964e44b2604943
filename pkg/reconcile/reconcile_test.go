package reconcile

import "testing"

func TestClassifyWithinTolerance(t *testing.T) {
	cases := []struct {
		registered float64
		candidate  float64
		want       State
	}{
		{46.90, 46.90, Matched},
		{46.90, 46.93, Matched},
		{46.90, 46.86, Matched},
		{46.90, 46.95, Mismatched}, // exactly Tolerance apart is not a match
		{46.90, 47.00, Mismatched},
		{46.90, 45.00, Mismatched},
		{46.90, 0, Pending},
		{0, 0, Pending},
	}
	for _, c := range cases {
		if got := Classify(c.registered, c.candidate); got != c.want {
			t.Fatalf("Classify(%v, %v) = %v want %v", c.registered, c.candidate, got, c.want)
		}
	}
}

func TestClassifySymmetry(t *testing.T) {
	if Classify(10.00, 10.04) != Classify(10.04, 10.00) {
		t.Fatalf("classification should not depend on argument order within tolerance")
	}
}

func TestStateString(t *testing.T) {
	if Pending.String() != "Pendiente" || Matched.String() != "Coincide" || Mismatched.String() != "Difiere" {
		t.Fatalf("unexpected state labels: %v %v %v", Pending, Matched, Mismatched)
	}
}

func TestSuggestCandidate(t *testing.T) {
	if got := SuggestCandidate("EFECTIVO", 25.50); got != 25.50 {
		t.Fatalf("cash should suggest registered amount, got %v", got)
	}
	if got := SuggestCandidate("ONLINE", 25.50); got != 25.50 {
		t.Fatalf("online should suggest registered amount, got %v", got)
	}
	if got := SuggestCandidate("FOTO", 25.50); got != 0 {
		t.Fatalf("photo validation must not pre-fill, got %v", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(46.9, true); got != "46.90" {
		t.Fatalf("expected 46.90 got %q", got)
	}
	if got := FormatAmount(0, false); got != "" {
		t.Fatalf("expected empty string got %q", got)
	}
}
