package wipe

import "fmt"

// PassKind discriminates a PassSpec's fill pattern.
type PassKind int

const (
	PassZeros PassKind = iota
	PassOnes
	PassRandomStream
	PassFixedPattern
)

// PassSpec is one entry of a PassPlan: a tagged fill-pattern variant, per
// spec §3.
type PassSpec struct {
	Kind    PassKind
	Seed    uint64 // RandomStream
	Pattern []byte // FixedPattern
}

// PassPlan is the ordered, non-empty overwrite program for a software
// wipe method. Immutable once built.
type PassPlan []PassSpec

// BuildPassPlan is the factory from spec §3: "Created by a factory from a
// WipeMethod; immutable." Returns nil for hardware methods — callers must
// check Method.IsHardware() first.
func BuildPassPlan(m Method) PassPlan {
	switch m.Kind {
	case MethodQuick:
		return PassPlan{{Kind: PassZeros}}
	case MethodDoD3:
		return PassPlan{
			{Kind: PassZeros},
			{Kind: PassOnes},
			{Kind: PassRandomStream, Seed: 0xDEADBEEF},
		}
	case MethodDoD7:
		return PassPlan{
			{Kind: PassZeros},
			{Kind: PassOnes},
			{Kind: PassRandomStream, Seed: 1},
			{Kind: PassZeros},
			{Kind: PassOnes},
			{Kind: PassRandomStream, Seed: 2},
			{Kind: PassZeros},
		}
	case MethodGutmann35:
		// Per spec §4.3: 35 random passes, not the historical Gutmann
		// pattern sequence — preserved verbatim from the source behavior.
		passes := make(PassPlan, 35)
		for i := range passes {
			passes[i] = PassSpec{Kind: PassRandomStream, Seed: uint64(i) + 1}
		}
		return passes
	default:
		return nil
	}
}

// RandomizeSeeds returns a copy of plan with every RandomStream pass's seed
// replaced by a value freshly drawn from the OS CSPRNG. BuildPassPlan's
// fixed literal seeds exist only so test code can construct a reproducible
// plan directly and assert its exact byte stream; every real wipe must call
// this before running the plan so the "random" pass is not the same
// predictable stream on every device, every run (spec §4.3: RandomStream's
// seed is "only used to make tests reproducible in test mode").
func RandomizeSeeds(plan PassPlan) (PassPlan, error) {
	out := make(PassPlan, len(plan))
	copy(out, plan)
	for i, spec := range out {
		if spec.Kind != PassRandomStream {
			continue
		}
		seed, err := secureRandomSeed()
		if err != nil {
			return nil, fmt.Errorf("draw random seed: %w", err)
		}
		out[i].Seed = seed
	}
	return out, nil
}
