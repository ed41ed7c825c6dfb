// Package grouper partitions an ordered plan into dependency groups.
package grouper

// DependencyKeywords is the vocabulary a KeywordClassifier matches against.
// Keeping it as data lets a deployment swap languages without touching the
// grouping algorithm.
type DependencyKeywords struct {
	// StepPatterns are regular expressions with one capture group holding a
	// 1-based step ordinal, e.g. `step\s*(\d+)`.
	StepPatterns []string

	// Dependency phrases mean the subtask consumes earlier results
	// (aggregation, comparison, "based on" ...).
	Dependency []string

	// Sequential phrases mean the subtask must run after what precedes it.
	Sequential []string
}

// DefaultDependencyKeywords is the English vocabulary.
var DefaultDependencyKeywords = DependencyKeywords{
	StepPatterns: []string{
		`\bsteps?\s*#?(\d+)`,
	},

	Dependency: []string{
		"aggregate",
		"aggregation",
		"combine",
		"compare",
		"comparison",
		"versus",
		"based on",
		"using the result of",
		"using the results of",
		"from the result",
		"from the results",
		"results from",
		"together with",
		"analyze",
		"evaluate",
	},

	Sequential: []string{
		"next",
		"then",
		"after that",
		"finally",
		"summarize",
		"summarise",
		"finalize",
	},
}

// VietnameseDependencyKeywords is the vocabulary of the original Vietnamese
// deployment.
var VietnameseDependencyKeywords = DependencyKeywords{
	StepPatterns: []string{
		`\bstep\s*(\d+)`,
		`\bbước\s*(\d+)`,
	},

	Dependency: []string{
		"tổng hợp",
		"so sánh",
		"kết hợp",
		"đối chiếu",
		"dựa trên",
		"sử dụng kết quả",
		"từ kết quả",
		"với giá",
		"và giá",
		"cùng với",
		"phân tích",
		"đánh giá",
		"xem xét",
	},

	Sequential: []string{
		"tiếp theo",
		"sau đó",
		"cuối cùng",
		"kết thúc",
		"tổng kết",
		"hoàn thiện",
	},
}

// MergeKeywords concatenates vocabularies. Duplicates are harmless.
func MergeKeywords(vocabularies ...DependencyKeywords) DependencyKeywords {
	var merged DependencyKeywords
	for _, v := range vocabularies {
		merged.StepPatterns = append(merged.StepPatterns, v.StepPatterns...)
		merged.Dependency = append(merged.Dependency, v.Dependency...)
		merged.Sequential = append(merged.Sequential, v.Sequential...)
	}
	return merged
}
