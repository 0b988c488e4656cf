// Package safe provides overflow-checked int64 arithmetic.
// Overflow in the settlement or balance path is an unrecoverable
// corruption, so these helpers panic rather than wrap.
package safe

import (
	"fmt"
	"math"
)

// SafeAdd returns a+b, panicking on int64 overflow.
func SafeAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		panic(fmt.Sprintf("SAFE_ADD_OVERFLOW: %d + %d", a, b))
	}
	if b < 0 && a < math.MinInt64-b {
		panic(fmt.Sprintf("SAFE_ADD_UNDERFLOW: %d + %d", a, b))
	}
	return a + b
}

// SafeSub returns a-b, panicking on int64 overflow.
func SafeSub(a, b int64) int64 {
	if b < 0 && a > math.MaxInt64+b {
		panic(fmt.Sprintf("SAFE_SUB_OVERFLOW: %d - %d", a, b))
	}
	if b > 0 && a < math.MinInt64+b {
		panic(fmt.Sprintf("SAFE_SUB_UNDERFLOW: %d - %d", a, b))
	}
	return a - b
}

// SafeMul returns a*b, panicking on int64 overflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	// MinInt64 * -1 wraps back to MinInt64 and the quotient check below
	// cannot see it: MinInt64 / -1 also wraps
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		panic(fmt.Sprintf("SAFE_MUL_OVERFLOW: %d * %d", a, b))
	}
	r := a * b
	if r/b != a {
		panic(fmt.Sprintf("SAFE_MUL_OVERFLOW: %d * %d", a, b))
	}
	return r
}

// SafeDiv returns a/b, panicking on division by zero.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic("SAFE_DIV_ZERO")
	}
	return a / b
}
