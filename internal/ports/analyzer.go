package ports

import "context"

// AnalyzeRequest is the payload sent to the task analyzer.
type AnalyzeRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	EnableAIRanking bool   `json:"enable_ai_ranking,omitempty"`
	EnableSubtasks  bool   `json:"enable_ai_subtasks,omitempty"`
	// APIKey overrides the pooled key when the user supplied their own.
	APIKey string `json:"-"`
}

// Enrichment is the analyzer's result. Every field may be absent; callers
// merge only what is present.
type Enrichment struct {
	SpeedScore      *int     `json:"ai_speed_score,omitempty"`
	ImportanceScore *int     `json:"ai_importance_score,omitempty"`
	SpeedTag        *string  `json:"speed_tag,omitempty"`
	ImportanceTag   *string  `json:"importance_tag,omitempty"`
	Emoji           *string  `json:"emoji,omitempty"`
	Subtasks        []string `json:"sub_tasks,omitempty"`
	AIGenerated     bool     `json:"ai_generated"`
}

// Analyzer is the LLM-backed enrichment service. Errors are non-fatal to
// callers: task creation proceeds without AI fields.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Enrichment, error)
	// SuggestEmoji picks an emoji for a group name. Best effort.
	SuggestEmoji(ctx context.Context, name string) (string, error)
}
