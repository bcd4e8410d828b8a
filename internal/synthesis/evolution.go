package synthesis

// Evolution names a rewrite strategy that deepens or reshapes a generated
// input while keeping it answerable.
type Evolution string

const (
	// EvolutionReasoning rewrites the input to require multi-step
	// reasoning.
	EvolutionReasoning Evolution = "Reasoning"

	// EvolutionMulticontext rewrites the input so every context segment
	// is needed to answer it.
	EvolutionMulticontext Evolution = "Multi-context"

	// EvolutionConcretizing replaces general concepts with specific ones.
	EvolutionConcretizing Evolution = "Concretizing"

	// EvolutionConstrained adds a condition that narrows the valid
	// answers.
	EvolutionConstrained Evolution = "Constrained"

	// EvolutionComparative asks for a comparison between elements of the
	// context.
	EvolutionComparative Evolution = "Comparative"

	// EvolutionHypothetical frames the input inside a plausible what-if
	// scenario.
	EvolutionHypothetical Evolution = "Hypothetical"

	// EvolutionInBreadth shifts the input to a rarer but related topic in
	// the same domain.
	EvolutionInBreadth Evolution = "In-Breadth"
)

// AllEvolutions returns every evolution in a stable order.
func AllEvolutions() []Evolution {
	return []Evolution{
		EvolutionReasoning,
		EvolutionMulticontext,
		EvolutionConcretizing,
		EvolutionConstrained,
		EvolutionComparative,
		EvolutionHypothetical,
		EvolutionInBreadth,
	}
}

// evolutionDirectives is the rewrite instruction inserted into the
// evolution prompt for each strategy.
var evolutionDirectives = map[Evolution]string{
	EvolutionReasoning:    "explicitly requires multi-step reasoning to answer, rather than a single fact lookup",
	EvolutionMulticontext: "requires information from every segment of the provided context to answer completely",
	EvolutionConcretizing: "replaces general concepts with concrete, specific ones while keeping the overall intent",
	EvolutionConstrained:  "adds a realistic condition or constraint that narrows down the valid answers",
	EvolutionComparative:  "asks for a comparison between at least two elements mentioned in the context",
	EvolutionHypothetical: "frames the request inside a plausible hypothetical scenario",
	EvolutionInBreadth:    "shifts it to a rarer but closely related topic within the same domain",
}

// defaultEvolutionWeights gives every evolution equal probability.
func defaultEvolutionWeights() map[Evolution]float64 {
	weights := make(map[Evolution]float64, len(AllEvolutions()))
	for _, evo := range AllEvolutions() {
		weights[evo] = 1
	}
	return weights
}

// pickEvolution draws one evolution from the weighted distribution.
// Iteration follows AllEvolutions order so equal seeds give equal picks.
func (s *Synthesizer) pickEvolution() Evolution {
	var total float64
	for _, evo := range AllEvolutions() {
		if w := s.evolutions[evo]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		return EvolutionReasoning
	}

	target := s.randFloat64() * total
	for _, evo := range AllEvolutions() {
		w := s.evolutions[evo]
		if w <= 0 {
			continue
		}
		target -= w
		if target < 0 {
			return evo
		}
	}

	// Floating-point edge: fall back to the last weighted evolution.
	for i := len(AllEvolutions()) - 1; i >= 0; i-- {
		if s.evolutions[AllEvolutions()[i]] > 0 {
			return AllEvolutions()[i]
		}
	}
	return EvolutionReasoning
}
