package models

import "time"

// Tier represents the storage tier of a fragment.
type Tier string

const (
	TierShort Tier = "short_term"
	TierLong  Tier = "long_term"
)

func (t Tier) IsValid() bool {
	return t == TierShort || t == TierLong
}

// Metadata "source" values.
const (
	SourceExplicit    = "explicit"
	SourceLearning    = "learning_interaction"
	SourceAssistant   = "assistant_response"
	SourcePipeline    = "pipeline_outlet"
	SourcePromotedKey = "promoted_from"
)

// Fragment is a single unit of remembered text owned by one user.
type Fragment struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Content     string         `json:"content"`
	ContentKey  string         `json:"content_key"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Tier        Tier           `json:"tier"`
	AccessCount int            `json:"access_count"`
	// CreatedAt and ExpiresAt are unix milliseconds.
	CreatedAt int64  `json:"created_at"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

// Expired reports whether the fragment's TTL has passed at now.
func (f *Fragment) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && *f.ExpiresAt <= now.UnixMilli()
}

// Clone returns a copy with its own metadata map.
func (f Fragment) Clone() Fragment {
	if f.Metadata != nil {
		md := make(map[string]any, len(f.Metadata))
		for k, v := range f.Metadata {
			md[k] = v
		}
		f.Metadata = md
	}
	if f.ExpiresAt != nil {
		exp := *f.ExpiresAt
		f.ExpiresAt = &exp
	}
	return f
}

// ScoredFragment pairs a fragment with a relevance or similarity score.
type ScoredFragment struct {
	Fragment
	Score float64 `json:"score"`
}

// Interaction is one user/assistant exchange. It is recorded for analytics
// and mined for facts; it is never retrieved as a memory itself.
type Interaction struct {
	UserID            string         `json:"user_id"`
	ConversationID    string         `json:"conversation_id"`
	UserMessage       string         `json:"user_message"`
	AssistantResponse string         `json:"assistant_response,omitempty"`
	ResponseTime      float64        `json:"response_time,omitempty"` // seconds
	ToolsUsed         []string       `json:"tools_used,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	Source            string         `json:"source,omitempty"`
}

// RetrievalRequest asks the engine for the fragments most relevant to Query.
type RetrievalRequest struct {
	UserID    string
	Query     string
	Limit     int
	Threshold float64
}

// SourceBreakdown counts how many returned fragments came from each tier.
type SourceBreakdown struct {
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
}

// RetrievalResult is the ranked, truncated output of a retrieval.
type RetrievalResult struct {
	Fragments []ScoredFragment
	Sources   SourceBreakdown
}

// WriteOptions controls how a write is placed.
type WriteOptions struct {
	Metadata map[string]any
	// LongTerm requests a durable copy in addition to the short-term one.
	LongTerm bool
}

// WriteResult reports where a write landed and which tiers failed.
type WriteResult struct {
	ID           string
	Stored       bool
	Deduplicated bool
	SkipReason   string
	Tiers        []Tier
	TierErrors   map[Tier]string
}

// Partial reports whether at least one tier took the write and another failed.
func (r *WriteResult) Partial() bool {
	return len(r.Tiers) > 0 && len(r.TierErrors) > 0
}

// DeleteResult reports deletions per tier.
type DeleteResult struct {
	ShortTerm  int
	LongTerm   int
	TierErrors map[Tier]string
}

// Total is the number of fragments removed across both tiers.
func (r *DeleteResult) Total() int {
	return r.ShortTerm + r.LongTerm
}

// MemoryTotals is the per-tier fragment count for a user.
type MemoryTotals struct {
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
	Total     int `json:"total"`
}

// ProcessResult is the outcome of processing one interaction.
type ProcessResult struct {
	Processed   bool
	NewMemories int
	Totals      MemoryTotals
}
