package safe

import (
	"math"
	"testing"
)

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s did not panic", name)
		}
	}()
	fn()
}

func TestSafeAdd(t *testing.T) {
	if got := SafeAdd(2, 3); got != 5 {
		t.Fatal(got)
	}
	if got := SafeAdd(math.MaxInt64, 0); got != math.MaxInt64 {
		t.Fatal(got)
	}
	if got := SafeAdd(math.MinInt64, math.MaxInt64); got != -1 {
		t.Fatal(got)
	}
	mustPanic(t, "add overflow", func() { SafeAdd(math.MaxInt64, 1) })
	mustPanic(t, "add underflow", func() { SafeAdd(math.MinInt64, -1) })
}

func TestSafeSub(t *testing.T) {
	if got := SafeSub(2, 3); got != -1 {
		t.Fatal(got)
	}
	if got := SafeSub(math.MinInt64, 0); got != math.MinInt64 {
		t.Fatal(got)
	}
	mustPanic(t, "sub underflow", func() { SafeSub(math.MinInt64, 1) })
	mustPanic(t, "sub overflow", func() { SafeSub(math.MaxInt64, -1) })
}

func TestSafeMul(t *testing.T) {
	if got := SafeMul(6, 7); got != 42 {
		t.Fatal(got)
	}
	if got := SafeMul(0, math.MaxInt64); got != 0 {
		t.Fatal(got)
	}
	if got := SafeMul(-3, 4); got != -12 {
		t.Fatal(got)
	}
	mustPanic(t, "mul overflow", func() { SafeMul(math.MaxInt64, 2) })
	mustPanic(t, "mul negative overflow", func() { SafeMul(math.MinInt64, -1) })
}

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(10, 3); got != 3 {
		t.Fatal(got)
	}
	if got := SafeDiv(-10, 3); got != -3 {
		t.Fatal(got)
	}
	mustPanic(t, "div by zero", func() { SafeDiv(1, 0) })
}
