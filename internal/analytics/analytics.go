// Package analytics accumulates cross-session usage counters for LeadChat.
//
// The aggregate is loaded at startup merged over defaults (so snapshots
// written by older versions load cleanly), mutated incrementally during any
// active session, and persisted through the store after every mutation. No
// operation ever decrements or removes entries.
package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/folkode/leadchat/internal/models"
	"github.com/folkode/leadchat/internal/store"
)

// Aggregator is the single writer of the analytics aggregate.
type Aggregator struct {
	mu    sync.Mutex
	data  models.AnalyticsData
	store store.Store
}

// NewAggregator creates an aggregator hydrated from the store. A missing or
// unreadable snapshot starts from defaults.
func NewAggregator(st store.Store) *Aggregator {
	a := &Aggregator{data: models.DefaultAnalyticsData(), store: st}

	loaded, err := st.GetAnalytics()
	if err != nil {
		slog.Warn("Aggregator: failed to load analytics snapshot, starting fresh", "error", err)
		return a
	}
	if loaded != nil {
		a.data.Merge(*loaded)
		slog.Debug("Aggregator: analytics snapshot loaded", "totalChats", a.data.TotalChats)
	}
	return a
}

// persist writes the aggregate through the store. Persistence failures are
// logged and do not interrupt the session.
func (a *Aggregator) persist() {
	if err := a.store.SaveAnalytics(a.data); err != nil {
		slog.Error("Aggregator: failed to persist analytics", "error", err)
	}
}

// RecordChatStarted increments the total chat counter. Called once per
// first-ever lead capture on a profile.
func (a *Aggregator) RecordChatStarted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.TotalChats++
	a.persist()
	slog.Debug("Aggregator.RecordChatStarted", "totalChats", a.data.TotalChats)
}

// RecordFeedback increments the like or dislike counter.
func (a *Aggregator) RecordFeedback(fb models.Feedback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch fb {
	case models.FeedbackLike:
		a.data.Feedback.Likes++
	case models.FeedbackDislike:
		a.data.Feedback.Dislikes++
	default:
		return
	}
	a.persist()
}

// RecordSuggestionClick increments the click count for a suggestion label.
func (a *Aggregator) RecordSuggestionClick(label string) {
	if label == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.Suggestions[label]++
	a.persist()
}

// RecordTopicTags increments the occurrence count of each summary tag.
func (a *Aggregator) RecordTopicTags(tags []string) {
	if len(tags) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		a.data.TopicTags[tag]++
	}
	a.persist()
}

// RecordConversion increments the conversion counter (meeting scheduled).
func (a *Aggregator) RecordConversion() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.TotalConversions++
	a.persist()
}

// RecordDuration appends a completed session duration.
func (a *Aggregator) RecordDuration(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.ChatDurations = append(a.data.ChatDurations, d.Milliseconds())
	a.persist()
}

// Snapshot returns a copy of the current aggregate.
func (a *Aggregator) Snapshot() models.AnalyticsData {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := a.data
	snap.Suggestions = make(map[string]int, len(a.data.Suggestions))
	for k, v := range a.data.Suggestions {
		snap.Suggestions[k] = v
	}
	snap.TopicTags = make(map[string]int, len(a.data.TopicTags))
	for k, v := range a.data.TopicTags {
		snap.TopicTags[k] = v
	}
	snap.ChatDurations = append([]int64{}, a.data.ChatDurations...)
	return snap
}

// DigestText renders a plain-text digest of the aggregate for the operator
// notification channel.
func (a *Aggregator) DigestText() string {
	snap := a.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "LeadChat analytics digest (%s)\n\n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(&b, "Total chats: %d\n", snap.TotalChats)
	fmt.Fprintf(&b, "Feedback: %d likes / %d dislikes\n", snap.Feedback.Likes, snap.Feedback.Dislikes)
	fmt.Fprintf(&b, "Conversions: %d\n", snap.TotalConversions)

	if len(snap.ChatDurations) > 0 {
		var total int64
		for _, d := range snap.ChatDurations {
			total += d
		}
		avg := time.Duration(total/int64(len(snap.ChatDurations))) * time.Millisecond
		fmt.Fprintf(&b, "Sessions ended: %d (avg duration %s)\n", len(snap.ChatDurations), avg.Round(time.Second))
	}

	if len(snap.TopicTags) > 0 {
		b.WriteString("\nTopics:\n")
		for _, kv := range sortedCounts(snap.TopicTags) {
			fmt.Fprintf(&b, "- %s: %d\n", kv.key, kv.count)
		}
	}
	if len(snap.Suggestions) > 0 {
		b.WriteString("\nPopular suggestions:\n")
		for _, kv := range sortedCounts(snap.Suggestions) {
			fmt.Fprintf(&b, "- %s: %d\n", kv.key, kv.count)
		}
	}
	return b.String()
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders a counter map by descending count, then key, for stable
// digest output.
func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}
