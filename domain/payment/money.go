package payment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a monetary amount in US cents.
type Cents int64

// ParseAmount reads amounts as they appear in rate tables: "$10.00",
// "1,250", "2.5". Dollar signs, commas and spaces are ignored.
func ParseAmount(s string) (Cents, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return Cents(math.Round(f * 100)), nil
}

// Dollars returns the amount as a float for display and spreadsheets.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

// Times multiplies the amount by a count.
func (c Cents) Times(n int) Cents {
	return c * Cents(n)
}

// String formats as $1,234.56.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := strconv.FormatInt(v/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, grouped.String(), v%100)
}

// MarshalText lets Cents appear as formatted strings in JSON.
func (c Cents) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts anything ParseAmount does.
func (c *Cents) UnmarshalText(b []byte) error {
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
