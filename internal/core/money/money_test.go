package money

import "testing"

func TestAddSub(t *testing.T) {
	a := MustNew("10.50")
	b := MustNew("2.25")

	if got := a.Add(b).String(); got != "12.75" {
		t.Fatalf("Add = %s, want 12.75", got)
	}
	if got := a.Sub(b).String(); got != "8.25" {
		t.Fatalf("Sub = %s, want 8.25", got)
	}
}

func TestMulInt(t *testing.T) {
	unit := MustNew("3.33")
	if got := unit.MulInt(3).String(); got != "9.99" {
		t.Fatalf("MulInt = %s, want 9.99", got)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"-1.005", "-1.01"},
	}
	for _, c := range cases {
		got, err := New(c.in)
		if err != nil {
			t.Fatalf("New(%s): %v", c.in, err)
		}
		if got.String() != c.want {
			t.Errorf("New(%s) = %s, want %s", c.in, got.String(), c.want)
		}
	}
}

func TestMulFactorSizeMultiplier(t *testing.T) {
	base := MustNew("10.00")
	got, err := base.MulFactor("1.3")
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "13.00" {
		t.Fatalf("MulFactor(1.3) = %s, want 13.00", got.String())
	}
}

func TestCmp(t *testing.T) {
	a := MustNew("5.00")
	b := MustNew("10.00")
	if !a.LessThan(b) {
		t.Fatal("expected 5.00 < 10.00")
	}
	if !b.GreaterThanOrEqual(a) {
		t.Fatal("expected 10.00 >= 5.00")
	}
	if a.GreaterThanOrEqual(b) {
		t.Fatal("expected 5.00 not >= 10.00")
	}
}

func TestMinorRoundTrip(t *testing.T) {
	m := FromMinor(1050)
	if m.String() != "10.50" {
		t.Fatalf("FromMinor(1050) = %s, want 10.50", m.String())
	}
	if got := m.Minor(); got != 1050 {
		t.Fatalf("Minor() = %d, want 1050", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m := MustNew("42.40")
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"42.40"` {
		t.Fatalf("MarshalJSON = %s, want \"42.40\"", data)
	}

	var out Money
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if out.Cmp(m) != 0 {
		t.Fatalf("round trip mismatch: %s != %s", out, m)
	}

	// Also accept bare numeric JSON from less careful callers.
	var out2 Money
	if err := out2.UnmarshalJSON([]byte("42.4")); err != nil {
		t.Fatal(err)
	}
	if out2.String() != "42.40" {
		t.Fatalf("UnmarshalJSON(42.4) = %s, want 42.40", out2.String())
	}
}

func TestSum(t *testing.T) {
	got := Sum(MustNew("1.00"), MustNew("2.00"), MustNew("3.50"))
	if got.String() != "6.50" {
		t.Fatalf("Sum = %s, want 6.50", got.String())
	}
	if !Sum().IsZero() {
		t.Fatal("Sum() with no args should be zero")
	}
}
