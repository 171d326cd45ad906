package catalog

// Pricing carries the provider's per-token prices as decimal strings, the
// way the catalog endpoint reports them.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// Model describes one entry of the provider's model catalog. The same shape
// is used for the persisted model pool and for import/export.
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ContextLength int     `json:"context_length"`
	Pricing       Pricing `json:"pricing"`
}

// Merge appends entries of extra whose id is not already present in base,
// preserving order. Existing ids are never duplicated or overwritten.
func Merge(base, extra []Model) []Model {
	seen := make(map[string]struct{}, len(base))
	for _, m := range base {
		seen[m.ID] = struct{}{}
	}

	merged := append([]Model(nil), base...)
	for _, m := range extra {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	return merged
}
