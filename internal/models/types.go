package models

// Status is the "status" field carried by every API response.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusError          Status = "error"
	StatusPartialSuccess Status = "partial_success"
)

// RetrieveRequest is the payload for POST /api/memory/retrieve.
type RetrieveRequest struct {
	UserID    string   `json:"user_id"`
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// MemoryResult is one fragment in a retrieve or list response.
type MemoryResult struct {
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
	Tier           Tier           `json:"tier"`
}

// RetrieveResponse is returned from retrieve and list.
type RetrieveResponse struct {
	Status   Status          `json:"status"`
	Memories []MemoryResult  `json:"memories"`
	Count    int             `json:"count"`
	Sources  SourceBreakdown `json:"sources"`
}

// SaveRequest is the payload for POST /api/memory/save.
type SaveRequest struct {
	UserID   string         `json:"user_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Category string         `json:"category,omitempty"`
}

// SaveResponse is returned from POST /api/memory/save.
type SaveResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
	Tiers   []Tier `json:"tiers,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DeleteRequest is the payload for POST /api/memory/delete.
type DeleteRequest struct {
	UserID     string `json:"user_id"`
	Query      string `json:"query"`
	ExactMatch bool   `json:"exact_match"`
}

// ForgetRequest is the payload for POST /api/memory/forget.
type ForgetRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// ClearRequest is the payload for POST /api/memory/clear.
type ClearRequest struct {
	UserID  string `json:"user_id"`
	Confirm bool   `json:"confirm"`
}

// DeleteResponse is returned from delete, forget and clear.
type DeleteResponse struct {
	Status       Status `json:"status"`
	Message      string `json:"message,omitempty"`
	DeletedCount int    `json:"deleted_count"`
	Error        string `json:"error,omitempty"`
}

// ProcessInteractionRequest is the payload for POST /api/learning/process_interaction.
type ProcessInteractionRequest struct {
	UserID            string         `json:"user_id"`
	ConversationID    string         `json:"conversation_id"`
	UserMessage       string         `json:"user_message"`
	AssistantResponse string         `json:"assistant_response,omitempty"`
	ResponseTime      float64        `json:"response_time,omitempty"`
	ToolsUsed         []string       `json:"tools_used,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	Source            string         `json:"source,omitempty"`
}

// ProcessInteractionResponse is returned from POST /api/learning/process_interaction.
type ProcessInteractionResponse struct {
	Status        Status       `json:"status"`
	Processed     bool         `json:"processed"`
	NewMemories   int          `json:"new_memories"`
	TotalMemories MemoryTotals `json:"total_memories"`
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	ShortTerm ServiceCheck `json:"short_term"`
	LongTerm  ServiceCheck `json:"long_term"`
	DB        ServiceCheck `json:"db"`
}

// ServiceCheck is the health of one backend.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
