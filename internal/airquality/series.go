package airquality

import (
	"fmt"
	"math"
)

// hoursPerDay is the number of hourly values the 24h average is computed over.
const hoursPerDay = 24

// Latest returns the newest value the sensor actually reported.
func (s Series) Latest() (Value, bool) {
	for _, v := range s.Values {
		if v.Value != nil {
			return v, true
		}
	}
	return Value{}, false
}

// Average24h averages the reported values among the newest 24 hourly slots,
// rounded to two decimals. Missing slots are skipped, not counted as zero.
func (s Series) Average24h() (float64, error) {
	if len(s.Values) < hoursPerDay {
		return 0, fmt.Errorf("%w: %d of %d hourly values", ErrInsufficientData, len(s.Values), hoursPerDay)
	}

	var (
		count int
		sum   float64
	)
	for _, v := range s.Values[:hoursPerDay] {
		if v.Value == nil {
			continue
		}
		count++
		sum += *v.Value
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: no reported values in the last %d hours", ErrInsufficientData, hoursPerDay)
	}

	return math.Round(sum/float64(count)*100) / 100, nil
}
