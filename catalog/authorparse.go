package catalog

import "strings"

// SplitAuthors splits a raw author string from the upstream service into
// individual names. The upstream field mixes commas, semicolons, and
// " and "/" & " conjunctions depending on how the source metadata was
// entered, so all three are treated as separators (spec §4.6, author
// ambiguity left unresolved per Open Questions — callers get the split
// list, not a canonicalized one).
func SplitAuthors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	replacer := strings.NewReplacer(
		";", ",",
		" and ", ",",
		" & ", ",",
	)
	normalized := replacer.Replace(raw)

	var names []string
	for _, part := range strings.Split(normalized, ",") {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
