package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// catalog resolves immutable assessment content through the cache-aside layer.
// Loaders read through the caller's transaction so a miss sees the same snapshot.
type catalog struct {
	cache cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func newCatalog(c cache.Cache, ttl time.Duration, log zerolog.Logger) *catalog {
	return &catalog{cache: c, ttl: ttl, log: log}
}

func (c *catalog) categorySet(ctx context.Context, tx repository.Tx, sessionID uuid.UUID, roleID int, category model.Category) (*model.CategoryQuestionSet, error) {
	key := config.CacheKey.CategorySetKey(sessionID, roleID, category)
	set, err := cache.GetOrLoad(ctx, c.cache, c.log, key, c.ttl, func(ctx context.Context) (*model.CategoryQuestionSet, error) {
		return tx.QuestionSets().GetBySessionRoleCategory(ctx, sessionID, roleID, category)
	})
	if err != nil {
		return nil, notFoundAs(err, ErrQuestionSetsNotFound)
	}
	return set, nil
}

// roleSets returns every category set of a session role. An empty result is
// reported as not found so it never gets cached ahead of generation.
func (c *catalog) roleSets(ctx context.Context, tx repository.Tx, sessionID uuid.UUID, roleID int) ([]model.CategoryQuestionSet, error) {
	key := config.CacheKey.RoleSetsKey(sessionID, roleID)
	sets, err := cache.GetOrLoad(ctx, c.cache, c.log, key, c.ttl, func(ctx context.Context) ([]model.CategoryQuestionSet, error) {
		sets, err := tx.QuestionSets().ListBySessionAndRole(ctx, sessionID, roleID)
		if err != nil {
			return nil, err
		}
		if len(sets) == 0 {
			return nil, repository.ErrNotFound
		}
		return sets, nil
	})
	if err != nil {
		return nil, notFoundAs(err, ErrQuestionSetsNotFound)
	}
	return sets, nil
}

func (c *catalog) question(ctx context.Context, tx repository.Tx, questionID uuid.UUID) (*model.Question, error) {
	key := config.CacheKey.QuestionKey(questionID)
	q, err := cache.GetOrLoad(ctx, c.cache, c.log, key, c.ttl, func(ctx context.Context) (*model.Question, error) {
		return tx.Questions().GetByID(ctx, questionID)
	})
	if err != nil {
		return nil, notFoundAs(err, ErrQuestionNotFound)
	}
	return q, nil
}

// forget drops the cached sets of the given session roles.
func (c *catalog) forget(ctx context.Context, sessionID uuid.UUID, roleIDs []int, order model.CategoryOrder) {
	keys := make([]string, 0, len(roleIDs)*(len(order)+1))
	for _, roleID := range roleIDs {
		keys = append(keys, config.CacheKey.RoleSetsKey(sessionID, roleID))
		for _, category := range order {
			keys = append(keys, config.CacheKey.CategorySetKey(sessionID, roleID, category))
		}
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to drop cached question sets")
	}
}

func findSet(sets []model.CategoryQuestionSet, category model.Category) *model.CategoryQuestionSet {
	for i := range sets {
		if sets[i].Category == category {
			return &sets[i]
		}
	}
	return nil
}

func setIDs(sets []model.CategoryQuestionSet) []uuid.UUID {
	ids := make([]uuid.UUID, len(sets))
	for i, s := range sets {
		ids[i] = s.ID
	}
	return ids
}
