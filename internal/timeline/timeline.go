// Package timeline arranges pages of messages for display: day buckets in
// reading order with compact rows for bursts from one author.
package timeline

import (
	"sort"
	"time"

	"github.com/harryheman/slack-clone/internal/models"
)

const (
	DateKeyLayout = "2006-01-02"

	DefaultCompactionThreshold = 5 * time.Minute
)

// Entry is one rendered row. Compact rows omit the author header.
type Entry struct {
	Message models.MessageView `json:"message"`
	Compact bool               `json:"compact"`
}

// Bucket holds the messages of one calendar day, oldest first.
type Bucket struct {
	DateKey string  `json:"date_key"`
	Entries []Entry `json:"entries"`
}

// Group buckets newest-first messages by calendar day in loc. Buckets come
// out in the order their day is first seen, so newest day first for pager
// output; messages inside a bucket are chronological. A message is compact
// when its predecessor in the bucket has the same author and was created
// less than threshold earlier. threshold <= 0 selects the default. messages
// is not modified.
func Group(messages []models.MessageView, threshold time.Duration, loc *time.Location) []Bucket {
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}
	if loc == nil {
		loc = time.Local
	}

	var buckets []Bucket
	index := make(map[string]int)
	for _, m := range messages {
		key := m.CreatedAt.In(loc).Format(DateKeyLayout)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{DateKey: key})
		}
		buckets[i].Entries = append(buckets[i].Entries, Entry{Message: m})
	}

	for i := range buckets {
		entries := buckets[i].Entries
		sort.SliceStable(entries, func(a, b int) bool {
			ma, mb := entries[a].Message, entries[b].Message
			if ma.CreatedAt.Equal(mb.CreatedAt) {
				return ma.ID < mb.ID
			}
			return ma.CreatedAt.Before(mb.CreatedAt)
		})
		for j := 1; j < len(entries); j++ {
			entries[j].Compact = compactAfter(&entries[j-1].Message, &entries[j].Message, threshold)
		}
	}
	return buckets
}

func compactAfter(prev, cur *models.MessageView, threshold time.Duration) bool {
	return prev.MemberID == cur.MemberID && cur.CreatedAt.Sub(prev.CreatedAt) < threshold
}

// DateLabel names a bucket relative to now: "Today", "Yesterday", or the
// weekday and date. Keys that do not parse are returned unchanged.
func DateLabel(dateKey string, now time.Time) string {
	day, err := time.ParseInLocation(DateKeyLayout, dateKey, now.Location())
	if err != nil {
		return dateKey
	}
	switch dateKey {
	case now.Format(DateKeyLayout):
		return "Today"
	case now.AddDate(0, 0, -1).Format(DateKeyLayout):
		return "Yesterday"
	}
	return day.Format("Monday, January 2")
}
