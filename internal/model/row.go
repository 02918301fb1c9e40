package model

// MatchRange is a highlighted span: character offset and length.
type MatchRange [2]int

// MessageRow is one row of a message query.
type MessageRow struct {
	ID int64 `json:"id"`

	// Flags is nil when the query ran without the per-user join.
	Flags *int64 `json:"flags,omitempty"`

	// Populated for search queries only.
	EscapedTopic    string       `json:"escaped_topic_name,omitempty"`
	RenderedContent string       `json:"rendered_content,omitempty"`
	ContentMatches  []MatchRange `json:"content_matches,omitempty"`
	TopicMatches    []MatchRange `json:"topic_matches,omitempty"`
}
