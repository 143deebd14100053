package progress

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// GraphQLStore writes progress through a SaveWatchProgress mutation
type GraphQLStore struct {
	client    *graphql.Client
	authToken string
}

// NewGraphQLStore creates a store that posts to the GraphQL endpoint at endpoint
func NewGraphQLStore(endpoint, authToken string) *GraphQLStore {
	return &GraphQLStore{
		client:    graphql.NewClient(endpoint),
		authToken: authToken,
	}
}

func (s *GraphQLStore) query(ctx context.Context, query string, variables map[string]interface{}, result interface{}) error {
	req := graphql.NewRequest(query)

	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	for key, value := range variables {
		req.Var(key, value)
	}

	return s.client.Run(ctx, req, result)
}

func (s *GraphQLStore) SaveProgress(ctx context.Context, identity string, update Update) error {
	mutation := `
		mutation ($videoId: ID!, $lastTime: Float!, $completed: Boolean, $lastSeason: Int, $lastChapter: Int, $progress: Float) {
			SaveWatchProgress(
				videoId: $videoId,
				lastTime: $lastTime,
				completed: $completed,
				lastSeason: $lastSeason,
				lastChapter: $lastChapter,
				progress: $progress
			) {
				lastTime
				completed
			}
		}
	`

	variables := map[string]interface{}{
		"videoId":   identity,
		"lastTime":  update.LastTime,
		"completed": update.Completed,
	}
	if update.LastSeason != nil {
		variables["lastSeason"] = *update.LastSeason
	}
	if update.LastChapter != nil {
		variables["lastChapter"] = *update.LastChapter
	}
	if update.Progress != nil {
		variables["progress"] = *update.Progress
	}

	var response struct {
		SaveWatchProgress Record
	}

	if err := s.query(ctx, mutation, variables, &response); err != nil {
		return fmt.Errorf("failed to save progress: %w", classifyError(err))
	}

	log.Trace("Saved progress", "identity", identity, "last_time", response.SaveWatchProgress.LastTime)
	return nil
}

func (s *GraphQLStore) FetchProgress(ctx context.Context, identity string) (Record, error) {
	query := `
		query ($videoId: ID!) {
			WatchProgress(videoId: $videoId) {
				lastTime
				completed
				lastSeason
				lastChapter
			}
		}
	`

	var response struct {
		WatchProgress *Record
	}

	if err := s.query(ctx, query, map[string]interface{}{"videoId": identity}, &response); err != nil {
		return Record{}, fmt.Errorf("failed to fetch progress: %w", classifyError(err))
	}
	if response.WatchProgress == nil {
		return Record{}, ErrNoProgress
	}
	return *response.WatchProgress, nil
}
