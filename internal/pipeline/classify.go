package pipeline

// Grouping is a suggested feature set drawn from the safe statistics.
type Grouping struct {
	Name       string
	Statistics []string
}

// Classification partitions evaluated statistics.
type Classification struct {
	Safe        []string
	Problematic []string
	Groupings   []Grouping
}

// Classify splits results into safe and problematic, preserving evaluation order, and
// proposes feature sets as prefixes of the safe list: two, four (when available) and all.
// No groupings are proposed with fewer than two safe statistics.
func Classify(rs *Results) Classification {
	var c Classification
	for _, r := range rs.All() {
		if r.OK() {
			c.Safe = append(c.Safe, r.Statistic)
		} else {
			c.Problematic = append(c.Problematic, r.Statistic)
		}
	}
	if len(c.Safe) >= 2 {
		c.Groupings = append(c.Groupings, Grouping{Name: "basic", Statistics: prefix(c.Safe, 2)})
		if len(c.Safe) >= 4 {
			c.Groupings = append(c.Groupings, Grouping{Name: "extended", Statistics: prefix(c.Safe, 4)})
		}
		c.Groupings = append(c.Groupings, Grouping{Name: "all safe", Statistics: prefix(c.Safe, len(c.Safe))})
	}
	return c
}

func prefix(s []string, n int) []string {
	out := make([]string, n)
	copy(out, s[:n])
	return out
}
