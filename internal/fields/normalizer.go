// Package fields maps source-provided free-text subject labels onto a fixed
// taxonomy of canonical field categories.
package fields

import "strings"

// Other is the catch-all category for records whose primary field matches no
// keyword in the taxonomy, or that carry no fields at all.
const Other = "Other"

// mapping is an ordered table of canonical category to keyword list. Order
// matters: the first category whose keyword list matches wins, so more
// specific keywords must come before broader ones.
type mapping struct {
	category string
	keywords []string
}

// taxonomy is the fixed canonical taxonomy. Keywords are matched
// case-insensitively as substrings of the primary field label.
var taxonomy = []mapping{
	{"Medicine", []string{"Medicine", "Clinical Medicine", "Health Sciences"}},
	{"Biology", []string{"Biology", "Life Sciences", "Molecular Biology", "Genetics"}},
	{"Computer Science", []string{"Computer Science", "Artificial Intelligence", "Machine Learning"}},
	{"Physics", []string{"Physics", "Astrophysics", "Quantum Physics"}},
	{"Chemistry", []string{"Chemistry", "Materials Science", "Chemical Engineering"}},
	{"Mathematics", []string{"Mathematics", "Statistics", "Applied Mathematics"}},
	{"Psychology", []string{"Psychology", "Cognitive Science", "Neuroscience"}},
	{"Engineering", []string{"Engineering", "Electrical Engineering", "Mechanical Engineering"}},
	{"Environmental Science", []string{"Environmental Science", "Geology", "Geography", "Earth Sciences"}},
	{"Political Science", []string{"Political Science", "Sociology", "Social Sciences"}},
	{"Economics", []string{"Economics", "Business", "Finance", "Management"}},
	{"Art", []string{"Art", "Music", "Performing Arts"}},
	{"Philosophy", []string{"Philosophy", "Ethics"}},
	{"History", []string{"History", "Archaeology"}},
}

// Normalize maps a record's raw fields-of-study list to one canonical
// category.
//
// Only the first element (the primary field) is inspected. This is a
// deliberate anti-misclassification policy: a paper whose primary field is
// "Computer Science" must not be filed under Medicine just because Medicine
// appears as a secondary field. Trailing elements are informational only and
// never influence the result.
//
// An empty input, or a primary field that matches no keyword, yields Other.
// Normalize is deterministic: equal inputs always produce equal outputs.
func Normalize(fieldsOfStudy []string) string {
	if len(fieldsOfStudy) == 0 {
		return Other
	}

	primary := strings.ToLower(fieldsOfStudy[0])
	if primary == "" {
		return Other
	}

	for _, m := range taxonomy {
		for _, kw := range m.keywords {
			if strings.Contains(primary, strings.ToLower(kw)) {
				return m.category
			}
		}
	}

	return Other
}

// Categories returns the canonical categories in taxonomy order, without
// Other. Useful for per-field threshold configuration validation.
func Categories() []string {
	out := make([]string, 0, len(taxonomy))
	for _, m := range taxonomy {
		out = append(out, m.category)
	}
	return out
}
