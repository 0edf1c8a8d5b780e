package money

// Code represents a currency code (e.g., "USD", "EUR").
type Code string

// Common currency codes
const (
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	JPY Code = "JPY" // Japanese Yen
	GBP Code = "GBP" // British Pound
	CAD Code = "CAD" // Canadian Dollar
)

// IsValid checks if the currency code is three uppercase ASCII letters.
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// Decimals returns the number of decimal places for the currency code.
func (c Code) Decimals() int {
	if c == JPY {
		return 0
	}
	return 2
}

// DefaultCode is the default currency code (USD).
var DefaultCode = USD
