package vectorstore

import (
	"encoding/json"
	"strconv"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// Payload keys shared by both long-term backends.
const (
	keyUserID      = "user_id"
	keyContent     = "content"
	keyContentKey  = "content_key"
	keyMetadata    = "metadata"
	keyCreatedAt   = "created_at"
	keyAccessCount = "access_count"
)

func toPayload(f models.Fragment) map[string]any {
	p := map[string]any{
		keyUserID:      f.UserID,
		keyContent:     f.Content,
		keyContentKey:  f.ContentKey,
		keyCreatedAt:   f.CreatedAt,
		keyAccessCount: f.AccessCount,
	}
	if len(f.Metadata) > 0 {
		p[keyMetadata] = f.Metadata
	}
	return p
}

func fromPayload(id string, p map[string]any) models.Fragment {
	f := models.Fragment{ID: id, Tier: models.TierLong}
	f.UserID, _ = p[keyUserID].(string)
	f.Content, _ = p[keyContent].(string)
	f.ContentKey, _ = p[keyContentKey].(string)
	f.CreatedAt = int64(number(p[keyCreatedAt]))
	f.AccessCount = int(number(p[keyAccessCount]))
	if md, ok := p[keyMetadata].(map[string]any); ok {
		f.Metadata = md
	}
	return f
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// chromem metadata is string-valued.

func toMetadata(f models.Fragment) (map[string]string, error) {
	md := map[string]string{
		keyUserID:      f.UserID,
		keyContentKey:  f.ContentKey,
		keyCreatedAt:   strconv.FormatInt(f.CreatedAt, 10),
		keyAccessCount: strconv.Itoa(f.AccessCount),
	}
	if len(f.Metadata) > 0 {
		data, err := json.Marshal(f.Metadata)
		if err != nil {
			return nil, err
		}
		md[keyMetadata] = string(data)
	}
	return md, nil
}

func fromMetadata(id, content string, md map[string]string) models.Fragment {
	f := models.Fragment{
		ID:         id,
		UserID:     md[keyUserID],
		Content:    content,
		ContentKey: md[keyContentKey],
		Tier:       models.TierLong,
	}
	f.CreatedAt, _ = strconv.ParseInt(md[keyCreatedAt], 10, 64)
	f.AccessCount, _ = strconv.Atoi(md[keyAccessCount])
	if raw, ok := md[keyMetadata]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &f.Metadata)
	}
	return f
}
