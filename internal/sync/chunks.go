package sync

import "time"

// Chunk is one contiguous slice of the backfill range. Start is
// inclusive, End exclusive, both midnight UTC.
type Chunk struct {
	Start time.Time
	End   time.Time
}

// Days returns how many report days the chunk covers.
func (c Chunk) Days() int {
	return int(c.End.Sub(c.Start).Hours() / 24)
}

// SplitRange cuts [from, to) into fixed-size chunks of sizeDays, oldest
// first. The final chunk carries the remainder.
func SplitRange(from, to time.Time, sizeDays int) []Chunk {
	if sizeDays <= 0 {
		sizeDays = 30
	}
	start := dayStart(from)
	end := dayStart(to)
	if !end.After(start) {
		return nil
	}

	var chunks []Chunk
	for cursor := start; cursor.Before(end); {
		next := cursor.AddDate(0, 0, sizeDays)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, Chunk{Start: cursor, End: next})
		cursor = next
	}
	return chunks
}
