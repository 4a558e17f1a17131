package models

import "strings"

// SplitSkills parses a comma-delimited skills column. Entries are trimmed,
// empty entries dropped and case-insensitive duplicates removed, keeping the
// first spelling.
func SplitSkills(raw string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func JoinSkills(skills []string) string {
	return strings.Join(skills, ",")
}

// NormalizeSkills rewrites a skills column into its canonical form.
func NormalizeSkills(raw string) string {
	return JoinSkills(SplitSkills(raw))
}

// SkillOverlap returns the fraction of required skills covered by have,
// compared case-insensitively. It is 0 when nothing is required.
func SkillOverlap(have, required []string) float64 {
	if len(required) == 0 {
		return 0
	}
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[strings.ToLower(s)] = true
	}
	hit := 0
	for _, s := range required {
		if set[strings.ToLower(s)] {
			hit++
		}
	}
	return float64(hit) / float64(len(required))
}
