package grouper

import "github.com/ShayCichocki/quoteflow/pkg/models"

// Group partitions texts into ordered dependency groups.
//
// The scan keeps one open group. A subtask with no dependency signal joins it;
// a dependent subtask closes the open group (if non-empty) and starts a new
// one. Concatenating the groups reproduces 0..len(texts)-1. An empty plan
// yields no groups.
func Group(texts []string, c Classifier) []models.Group {
	if len(texts) == 0 {
		return nil
	}
	if c == nil {
		c = DefaultClassifier()
	}

	var groups []models.Group
	var current models.Group

	for i, text := range texts {
		if c.HasDependency(i, text) && len(current) > 0 {
			groups = append(groups, current)
			current = models.Group{i}
			continue
		}
		current = append(current, i)
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// GroupPlan groups a plan by its subtask texts.
func GroupPlan(plan models.Plan, c Classifier) []models.Group {
	return Group(plan.Texts(), c)
}

// Flatten concatenates group indices in order.
func Flatten(groups []models.Group) []int {
	var out []int
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
