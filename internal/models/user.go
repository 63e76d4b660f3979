package models

import "time"

// User is the persisted account record
type User struct {
	UserID        string    `bson:"userId" json:"userId"`
	BestStreak    int       `bson:"bestStreak" json:"bestStreak"`
	TotalSessions int       `bson:"totalSessions" json:"totalSessions"`
	LastActive    time.Time `bson:"lastActive" json:"lastActive"`
	CreatedAt     time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt     time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Streak is one completed teaching session's streak record
type Streak struct {
	UserID   string    `bson:"userId" json:"userId"`
	Duration int       `bson:"duration" json:"duration"` // streak length in ticks (seconds)
	Topic    string    `bson:"topic" json:"topic"`
	EndedAt  time.Time `bson:"endedAt" json:"endedAt"`
}

// LeaderboardEntry is one row of the public leaderboard
type LeaderboardEntry struct {
	UserID     string `bson:"userId" json:"userId"`
	BestStreak int    `bson:"bestStreak" json:"bestStreak"`
}

// UserSummary aggregates a user's streak history
type UserSummary struct {
	TotalSessions int        `json:"totalSessions"`
	TotalDuration int        `json:"totalDuration"`
	BestStreak    int        `json:"bestStreak"`
	AvgDuration   int        `json:"avgDuration"`
	LastActive    *time.Time `json:"lastActive"`
}
