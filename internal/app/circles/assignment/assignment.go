// Package assignment partitions accepted participants into balanced circles.
//
// Divide is a pure function: given the same input order, bounds and random
// source it always produces the same partition. Production callers pass a
// source seeded from crypto/rand (see NewRand); tests pass a fixed seed.
package assignment

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
)

// Bounds are the sizes Divide works with. Target drives the group count;
// Min and Max are hard limits on every produced group (except the
// undersized-cohort case, see Divide).
type Bounds struct {
	Target int
	Min    int
	Max    int
}

// Validate checks the bounds are usable at all.
func (b Bounds) Validate() error {
	if b.Min < 1 || b.Max < b.Min || b.Target < 1 {
		return apperrors.Validation(apperrors.CodeUnsatisfiableSizes,
			fmt.Sprintf("invalid group bounds: target=%d min=%d max=%d", b.Target, b.Min, b.Max))
	}
	return nil
}

// NewSeed returns a high-entropy seed from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a pseudo-random source for Divide. The returned *rand.Rand
// is not safe for concurrent use; create one per assignment run.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Divide shuffles ids and splits them into groups.
//
//   - fewer than Min ids: one group holding everyone (an undersized cohort
//     is grouped together rather than rejected); zero ids yield no groups.
//   - otherwise numGroups = max(1, n/Target), raised until no group would
//     exceed Max, and the first n%numGroups groups receive one extra member.
//
// For n ≥ Min every group size lies in [Min, Max] and sizes differ by at
// most one. If the bounds make that impossible Divide returns a Validation
// error rather than breaking the invariant.
func Divide[T any](ids []T, b Bounds, rng *rand.Rand) ([][]T, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		seed, err := NewSeed()
		if err != nil {
			return nil, err
		}
		rng = NewRand(seed)
	}

	shuffled := make([]T, len(ids))
	copy(shuffled, ids)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := len(shuffled)
	if n == 0 {
		return nil, nil
	}
	if n < b.Min {
		return [][]T{shuffled}, nil
	}

	numGroups := n / b.Target
	if numGroups < 1 {
		numGroups = 1
	}
	for ceilDiv(n, numGroups) > b.Max {
		numGroups++
	}

	baseSize := n / numGroups
	extra := n % numGroups
	if baseSize < b.Min {
		return nil, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeUnsatisfiableSizes,
			fmt.Sprintf("%d participants cannot be split into groups of %d to %d", n, b.Min, b.Max),
			map[string]string{
				"participants": strconv.Itoa(n),
				"min":          strconv.Itoa(b.Min),
				"max":          strconv.Itoa(b.Max),
			})
	}

	groups := make([][]T, 0, numGroups)
	start := 0
	for i := 0; i < numGroups; i++ {
		size := baseSize
		if i < extra {
			size++
		}
		groups = append(groups, shuffled[start:start+size:start+size])
		start += size
	}
	return groups, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

var labels = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

// GroupName returns the i-th (zero-based) generated circle name:
// "Circle A" … "Circle Z", then "Circle 27", "Circle 28", ….
func GroupName(i int) string {
	if i >= 0 && i < len(labels) {
		return "Circle " + labels[i]
	}
	return "Circle " + strconv.Itoa(i+1)
}

// GroupNames returns count sequential names, skipping any for which taken
// reports true (e.g. groups an admin already created in the pool).
func GroupNames(count int, taken func(name string) bool) []string {
	names := make([]string, 0, count)
	for i := 0; len(names) < count; i++ {
		name := GroupName(i)
		if taken != nil && taken(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}
