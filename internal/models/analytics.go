package models

// FeedbackCounts holds cumulative like/dislike totals across sessions.
type FeedbackCounts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// AnalyticsData is the process-wide aggregate persisted after every mutation.
// Loaded snapshots are merged over DefaultAnalyticsData so fields added after
// a deployment fall back to zero values instead of crashing.
type AnalyticsData struct {
	TotalChats       int            `json:"totalChats"`
	Feedback         FeedbackCounts `json:"feedback"`
	Suggestions      map[string]int `json:"suggestions"`
	ChatDurations    []int64        `json:"chatDurations"` // milliseconds
	TotalConversions int            `json:"totalConversions"`
	TopicTags        map[string]int `json:"topicTags"`
}

// DefaultAnalyticsData returns a zero-valued aggregate with maps allocated.
func DefaultAnalyticsData() AnalyticsData {
	return AnalyticsData{
		Suggestions:   make(map[string]int),
		ChatDurations: []int64{},
		TopicTags:     make(map[string]int),
	}
}

// Merge overlays the non-nil parts of a loaded snapshot onto defaults. Missing
// maps stay allocated so increment operations never hit a nil map.
func (a *AnalyticsData) Merge(loaded AnalyticsData) {
	a.TotalChats = loaded.TotalChats
	a.Feedback = loaded.Feedback
	a.TotalConversions = loaded.TotalConversions
	if loaded.Suggestions != nil {
		a.Suggestions = loaded.Suggestions
	}
	if loaded.ChatDurations != nil {
		a.ChatDurations = loaded.ChatDurations
	}
	if loaded.TopicTags != nil {
		a.TopicTags = loaded.TopicTags
	}
}
