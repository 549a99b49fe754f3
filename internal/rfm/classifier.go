package rfm

const (
	SegmentChampions      = "champions"
	SegmentLoyal          = "loyal"
	SegmentPromising      = "promising"
	SegmentAtRisk         = "at_risk"
	SegmentLost           = "lost"
	SegmentHibernating    = "hibernating"
	SegmentPotential      = "potential"
	SegmentNeedsAttention = "needs_attention"
)

type classifierRule struct {
	segment string
	match   func(r, f, m int) bool
}

// classifierRules is evaluated top to bottom and the first match wins.
// Several predicates overlap (a customer with r=1 and f<=2 satisfies both
// lost and hibernating), so the order is part of the contract and must not
// be rearranged.
var classifierRules = []classifierRule{
	{SegmentChampions, func(r, f, m int) bool { return r >= 4 && f >= 4 && m >= 4 }},
	{SegmentLoyal, func(r, f, m int) bool { return f >= 4 && m >= 4 }},
	{SegmentPromising, func(r, f, m int) bool { return r >= 4 && f <= 2 }},
	{SegmentAtRisk, func(r, f, m int) bool { return r <= 2 && f >= 3 && m >= 3 }},
	{SegmentLost, func(r, f, m int) bool { return r == 1 }},
	{SegmentHibernating, func(r, f, m int) bool { return r <= 2 && f <= 2 }},
	{SegmentPotential, func(r, f, m int) bool { return r >= 3 && f >= 2 && m >= 2 }},
}

// Classify maps an (r, f, m) score triple to a segment name. Inputs are
// clamped to [1,5]; the result is always a key of Descriptors().
func Classify(r, f, m int) string {
	r = clampScore(r)
	f = clampScore(f)
	m = clampScore(m)

	for _, rule := range classifierRules {
		if rule.match(r, f, m) {
			return rule.segment
		}
	}
	return SegmentNeedsAttention
}
