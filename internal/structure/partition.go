// Package structure turns a program into its microcycle skeleton: cycle
// lengths, training days with archetypes and pattern focus, and the
// goal-weighted conversion of lifting days into cardio or conditioning days.
package structure

import (
	"math"

	"github.com/shourjoguha/alloy/internal/models"
)

// maxPartitionIterations bounds the count adjustment loop.
const maxPartitionIterations = 50

// Partition splits total days into microcycle lengths, each within
// [MinCycleLength, MaxCycleLength], with the longer cycles first.
// The preferred length is clamped into range. Returns nil for total <= 0.
func Partition(total, preferred int) []int {
	if total <= 0 {
		return nil
	}
	preferred = clampCycleLength(preferred)

	count := int(math.Round(float64(total) / float64(preferred)))
	if count < 1 {
		count = 1
	}

	for i := 0; i < maxPartitionIterations; i++ {
		base, remainder := total/count, total%count
		if base < models.MinCycleLength {
			if count == 1 {
				// Shorter than one minimum cycle; nothing to split.
				return []int{total}
			}
			count--
			continue
		}
		if base > models.MaxCycleLength || (base == models.MaxCycleLength && remainder > 0) {
			count++
			continue
		}
		break
	}
	base, remainder := total/count, total%count

	lengths := make([]int, 0, count)
	for i := 0; i < remainder; i++ {
		lengths = append(lengths, base+1)
	}
	for i := remainder; i < count; i++ {
		lengths = append(lengths, base)
	}
	return lengths
}

func clampCycleLength(n int) int {
	if n < models.MinCycleLength {
		return models.MinCycleLength
	}
	if n > models.MaxCycleLength {
		return models.MaxCycleLength
	}
	return n
}
