package model

// AllowedQuestionCounts are the question counts a user can pick from.
var AllowedQuestionCounts = []int{3, 5, 10, 20, 50}

// IsAllowedQuestionCount reports whether n is one of AllowedQuestionCounts.
func IsAllowedQuestionCount(n int) bool {
	for _, c := range AllowedQuestionCounts {
		if c == n {
			return true
		}
	}
	return false
}

// QuizSelection is the raw, user-chosen quiz configuration.
type QuizSelection struct {
	NumQuestions        int      `json:"num_questions" binding:"required,quizcount"`
	Difficulty          string   `json:"difficulty" binding:"omitempty,difficulty"`
	Categories          []string `json:"categories" binding:"omitempty,max=50,dive,min=1,max=100"`
	Types               []string `json:"types" binding:"omitempty,max=20,dive,min=1,max=50"`
	TimeLimitSeconds    int      `json:"time_limit_seconds" binding:"min=0,max=14400"`
	IncludeExplanations bool     `json:"include_explanations"`
}

// QuizConfig is a selection that passed validation against the inventory.
type QuizConfig struct {
	NumQuestions        int        `json:"num_questions"`
	Difficulty          Difficulty `json:"difficulty"`
	Categories          []string   `json:"categories"`
	Types               []string   `json:"types"`
	TimeLimitSeconds    int        `json:"time_limit_seconds"`
	IncludeExplanations bool       `json:"include_explanations"`
}

// Filter turns the config into a question source request.
func (c QuizConfig) Filter() QuestionFilter {
	return QuestionFilter{
		Count:      c.NumQuestions,
		Difficulty: c.Difficulty,
		Categories: c.Categories,
		Types:      c.Types,
	}
}

// Inventory is a snapshot of how many questions are available per category and type.
type Inventory struct {
	Categories map[string]int `json:"categories"`
	Types      map[string]int `json:"types"`
}

// ConfigValidation is returned by the dry-run config endpoint.
type ConfigValidation struct {
	Valid     bool        `json:"valid"`
	Config    *QuizConfig `json:"config,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Requested int         `json:"requested"`
	Available int         `json:"available"`
}
