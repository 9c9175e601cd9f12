package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/folkode/leadchat/internal/models"
	"github.com/folkode/leadchat/internal/store"
)

func TestAggregatorRecordsAndPersists(t *testing.T) {
	st := store.NewInMemoryStore()
	agg := NewAggregator(st)

	agg.RecordChatStarted()
	agg.RecordFeedback(models.FeedbackLike)
	agg.RecordFeedback(models.FeedbackLike)
	agg.RecordFeedback(models.FeedbackDislike)
	agg.RecordSuggestionClick("See pricing")
	agg.RecordSuggestionClick("See pricing")
	agg.RecordTopicTags([]string{"Web App", "E-commerce"})
	agg.RecordConversion()
	agg.RecordDuration(90 * time.Second)

	snap := agg.Snapshot()
	if snap.TotalChats != 1 {
		t.Errorf("expected 1 total chat, got %d", snap.TotalChats)
	}
	if snap.Feedback.Likes != 2 || snap.Feedback.Dislikes != 1 {
		t.Errorf("unexpected feedback counts: %+v", snap.Feedback)
	}
	if snap.Suggestions["See pricing"] != 2 {
		t.Errorf("expected 2 clicks for 'See pricing', got %d", snap.Suggestions["See pricing"])
	}
	if snap.TopicTags["Web App"] != 1 || snap.TopicTags["E-commerce"] != 1 {
		t.Errorf("unexpected topic tags: %v", snap.TopicTags)
	}
	if snap.TotalConversions != 1 {
		t.Errorf("expected 1 conversion, got %d", snap.TotalConversions)
	}
	if len(snap.ChatDurations) != 1 || snap.ChatDurations[0] != 90000 {
		t.Errorf("unexpected durations: %v", snap.ChatDurations)
	}

	// Every mutation writes through; a fresh aggregator over the same store
	// must see the same values.
	rehydrated := NewAggregator(st)
	snap2 := rehydrated.Snapshot()
	if snap2.TotalChats != snap.TotalChats || snap2.Feedback != snap.Feedback {
		t.Errorf("rehydrated aggregate differs: %+v vs %+v", snap2, snap)
	}
}

func TestAggregatorIgnoresInvalidInput(t *testing.T) {
	agg := NewAggregator(store.NewInMemoryStore())

	agg.RecordFeedback(models.Feedback("shrug"))
	agg.RecordSuggestionClick("")
	agg.RecordTopicTags(nil)
	agg.RecordTopicTags([]string{""})

	snap := agg.Snapshot()
	if snap.Feedback.Likes != 0 || snap.Feedback.Dislikes != 0 {
		t.Errorf("invalid feedback was counted: %+v", snap.Feedback)
	}
	if len(snap.Suggestions) != 0 {
		t.Errorf("empty suggestion label was counted: %v", snap.Suggestions)
	}
	if len(snap.TopicTags) != 0 {
		t.Errorf("empty tags were counted: %v", snap.TopicTags)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	agg := NewAggregator(store.NewInMemoryStore())
	agg.RecordSuggestionClick("Branding")

	snap := agg.Snapshot()
	snap.Suggestions["Branding"] = 99
	snap.TopicTags["injected"] = 1

	if got := agg.Snapshot().Suggestions["Branding"]; got != 1 {
		t.Errorf("snapshot mutation leaked into aggregator: got %d", got)
	}
	if _, ok := agg.Snapshot().TopicTags["injected"]; ok {
		t.Error("snapshot map mutation leaked into aggregator")
	}
}

func TestMergePreservesOlderSnapshots(t *testing.T) {
	st := store.NewInMemoryStore()
	// Simulate a snapshot written by an older version with nil maps.
	if err := st.SaveAnalytics(models.AnalyticsData{TotalChats: 7}); err != nil {
		t.Fatalf("failed to seed analytics: %v", err)
	}

	agg := NewAggregator(st)
	snap := agg.Snapshot()
	if snap.TotalChats != 7 {
		t.Errorf("expected loaded total chats 7, got %d", snap.TotalChats)
	}

	// Maps must stay usable even though the loaded snapshot had none.
	agg.RecordSuggestionClick("Web App")
	if got := agg.Snapshot().Suggestions["Web App"]; got != 1 {
		t.Errorf("expected click recorded after merge, got %d", got)
	}
}

func TestDigestText(t *testing.T) {
	agg := NewAggregator(store.NewInMemoryStore())
	agg.RecordChatStarted()
	agg.RecordFeedback(models.FeedbackLike)
	agg.RecordConversion()
	agg.RecordDuration(2 * time.Minute)
	agg.RecordTopicTags([]string{"Mobile App", "Mobile App", "Branding"})
	agg.RecordSuggestionClick("Tell me more")

	digest := agg.DigestText()
	for _, want := range []string{
		"Total chats: 1",
		"1 likes / 0 dislikes",
		"Conversions: 1",
		"avg duration 2m0s",
		"Mobile App: 2",
		"Tell me more: 1",
	} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q:\n%s", want, digest)
		}
	}

	// Higher counts sort first.
	if strings.Index(digest, "Mobile App") > strings.Index(digest, "Branding") {
		t.Error("expected topics ordered by descending count")
	}
}
