package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"teachback/internal/database"
	"teachback/internal/models"
)

const leaderboardCacheKey = "leaderboard"

// StatsService persists users and streak history and serves the leaderboard,
// history and summary reads. The leaderboard is cached briefly since it is
// public and hit on every session end.
type StatsService struct {
	db    *database.MongoDB
	cache *cache.Cache
}

// NewStatsService creates a stats service
func NewStatsService(db *database.MongoDB) *StatsService {
	return &StatsService{
		db:    db,
		cache: cache.New(30*time.Second, time.Minute),
	}
}

// TouchUser upserts the user record, bumping totalSessions and lastActive.
// Called when a token is issued.
func (s *StatsService) TouchUser(ctx context.Context, userID string) error {
	if s.db == nil {
		return errors.New("stats store not configured")
	}

	_, err := s.db.Collection(database.CollectionUsers).UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$set":         bson.M{"lastActive": time.Now()},
			"$inc":         bson.M{"totalSessions": 1},
			"$setOnInsert": bson.M{"bestStreak": 0, "createdAt": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", userID, err)
	}
	return nil
}

// RecordStreak saves one completed session's streak and raises the user's
// best streak if exceeded. The best streak never decreases ($max).
func (s *StatsService) RecordStreak(ctx context.Context, userID string, duration int, topic string) error {
	if s.db == nil {
		return errors.New("stats store not configured")
	}

	_, err := s.db.Collection(database.CollectionStreaks).InsertOne(ctx, models.Streak{
		UserID:   userID,
		Duration: duration,
		Topic:    topic,
		EndedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert streak: %w", err)
	}

	_, err = s.db.Collection(database.CollectionUsers).UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$max": bson.M{"bestStreak": duration},
			"$set": bson.M{"lastActive": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update best streak: %w", err)
	}

	s.cache.Delete(leaderboardCacheKey)
	return nil
}

// Leaderboard returns the top 10 users by best streak
func (s *StatsService) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	if cached, found := s.cache.Get(leaderboardCacheKey); found {
		return cached.([]models.LeaderboardEntry), nil
	}

	cursor, err := s.db.Collection(database.CollectionUsers).Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "bestStreak", Value: -1}}).
			SetLimit(10).
			SetProjection(bson.M{"userId": 1, "bestStreak": 1, "_id": 0}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]models.LeaderboardEntry, 0, 10)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard: %w", err)
	}

	s.cache.Set(leaderboardCacheKey, entries, cache.DefaultExpiration)
	return entries, nil
}

// History returns the user's 10 most recent streaks
func (s *StatsService) History(ctx context.Context, userID string) ([]models.Streak, error) {
	cursor, err := s.db.Collection(database.CollectionStreaks).Find(ctx,
		bson.M{"userId": userID},
		options.Find().
			SetSort(bson.D{{Key: "endedAt", Value: -1}}).
			SetLimit(10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer cursor.Close(ctx)

	history := make([]models.Streak, 0, 10)
	if err := cursor.All(ctx, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return history, nil
}

// Summary aggregates the user's full streak history
func (s *StatsService) Summary(ctx context.Context, userID string) (*models.UserSummary, error) {
	cursor, err := s.db.Collection(database.CollectionStreaks).Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch streaks: %w", err)
	}
	defer cursor.Close(ctx)

	var streaks []models.Streak
	if err := cursor.All(ctx, &streaks); err != nil {
		return nil, fmt.Errorf("failed to decode streaks: %w", err)
	}

	var user models.User
	err = s.db.Collection(database.CollectionUsers).FindOne(ctx, bson.M{"userId": userID}).Decode(&user)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	summary := Summarize(streaks, user.BestStreak)
	if err == nil {
		lastActive := user.LastActive
		summary.LastActive = &lastActive
	}
	return summary, nil
}

// Summarize folds a streak history into a summary
func Summarize(streaks []models.Streak, bestStreak int) *models.UserSummary {
	total := 0
	for _, st := range streaks {
		total += st.Duration
	}

	avg := 0
	if len(streaks) > 0 {
		avg = (total + len(streaks)/2) / len(streaks) // rounded
	}

	return &models.UserSummary{
		TotalSessions: len(streaks),
		TotalDuration: total,
		BestStreak:    bestStreak,
		AvgDuration:   avg,
	}
}
