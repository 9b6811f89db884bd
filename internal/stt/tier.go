package stt

import (
	"fmt"
	"strings"
)

// Tier is a speech model size. Larger tiers are more accurate and need more
// memory.
type Tier int

const (
	TierTiny Tier = iota
	TierBase
	TierSmall
	TierMedium
	TierLarge
)

// DefaultTier is used by the transcription service when none is configured.
const DefaultTier = TierMedium

var tierNames = [...]string{"tiny", "base", "small", "medium", "large"}

func (t Tier) String() string {
	if t < TierTiny || t > TierLarge {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t >= TierTiny && t <= TierLarge
}

// ParseTier maps a tier name to a Tier.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown model tier %q", s)
}

// Ladder returns from, then each smaller tier down to tiny.
func Ladder(from Tier) []Tier {
	if !from.Valid() {
		return nil
	}
	out := make([]Tier, 0, int(from)+1)
	for t := from; t >= TierTiny; t-- {
		out = append(out, t)
	}
	return out
}
