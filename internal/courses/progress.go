package courses

import (
	"math"
	"time"
)

// CompletionThreshold is the watched share (percent) at which a video counts as completed.
const CompletionThreshold = 90.0

type Progress struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	CourseID             string    `json:"course_id"`
	VideoID              string    `json:"video_id"`
	WatchDurationSeconds int       `json:"watch_duration_seconds"`
	CompletionPercentage float64   `json:"completion_percentage"`
	IsCompleted          bool      `json:"is_completed"`
	LastWatchedAt        time.Time `json:"last_watched_at"`
}

// Completion derives the completion percentage (two decimals, capped at 100)
// and the completed flag from the watched seconds. A video without a known
// duration reports zero.
func Completion(watchedSeconds, videoSeconds int) (float64, bool) {
	if videoSeconds <= 0 {
		return 0, false
	}
	pct := math.Min(100, float64(max(watchedSeconds, 0))/float64(videoSeconds)*100)
	return math.Round(pct*100) / 100, pct >= CompletionThreshold
}

// Watched is the progress after the user reports watchedSeconds of v.
func Watched(userID, courseID string, v Video, watchedSeconds int) Progress {
	pct, done := Completion(watchedSeconds, v.DurationSeconds)
	return Progress{
		UserID:               userID,
		CourseID:             courseID,
		VideoID:              v.ID,
		WatchDurationSeconds: max(watchedSeconds, 0),
		CompletionPercentage: pct,
		IsCompleted:          done,
		LastWatchedAt:        time.Now().UTC(),
	}
}

// Completed is the progress of a video marked as fully watched.
func Completed(userID, courseID string, v Video) Progress {
	return Progress{
		UserID:               userID,
		CourseID:             courseID,
		VideoID:              v.ID,
		WatchDurationSeconds: max(v.DurationSeconds, 0),
		CompletionPercentage: 100,
		IsCompleted:          true,
		LastWatchedAt:        time.Now().UTC(),
	}
}
