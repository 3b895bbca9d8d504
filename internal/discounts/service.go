package discounts

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "discounts").Logger()

// Service reads the active rule set through a cache and runs the admin
// operations on rules.
type Service struct {
	store *Store
	cache RulesCache
	sfg   singleflight.Group // collapses concurrent cache misses
	newID func() string
}

// NewService wires a Service. A nil cache disables caching.
func NewService(store *Store, cache RulesCache) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		store: store,
		cache: cache,
		newID: uuid.NewString,
	}
}

// ActiveRecords returns the active rules in precedence order.
func (s *Service) ActiveRecords(ctx context.Context) ([]Record, error) {
	rules, err := s.cache.Get(ctx)
	if err == nil {
		return rules, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Warn().Err(err).Msg("Error reading active rules from cache")
	}

	v, err, _ := s.sfg.Do(activeRulesKey, func() (interface{}, error) {
		rules, err := s.store.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, rules); err != nil {
			logger.Warn().Err(err).Msg("Error caching active rules")
		}
		return rules, nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Error loading active rules")
		return nil, apperr.Internal("Failed to load discount rules", err)
	}
	return v.([]Record), nil
}

// ActiveRules returns the active rules converted for the engine. Records that
// fail validation are skipped.
func (s *Service) ActiveRules(ctx context.Context) ([]Rule, error) {
	records, err := s.ActiveRecords(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(records))
	for _, rec := range records {
		r, err := rec.Rule()
		if err != nil {
			logger.Warn().Err(err).Str("rule_id", rec.ID).Msg("Skipping malformed discount rule")
			continue
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ListAll returns every rule, active or not.
func (s *Service) ListAll(ctx context.Context) ([]Record, error) {
	rules, err := s.store.ListAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing discount rules")
		return nil, apperr.Internal("Failed to list discount rules", err)
	}
	return rules, nil
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, r Record) (Record, error) {
	r.ID = s.newID()
	r.ApplyDefaults()
	if _, err := r.Rule(); err != nil {
		return Record{}, apperr.Validation(err.Error())
	}

	created, err := s.store.Create(ctx, r)
	if err != nil {
		logger.Error().Err(err).Str("rule_id", r.ID).Msg("Error creating discount rule")
		return Record{}, apperr.Internal("Failed to create discount rule", err)
	}
	s.invalidate(ctx)
	logger.Info().Str("rule_id", created.ID).Str("type", string(created.Type)).Msg("Discount rule created")
	return created, nil
}

// Update merges a patch into an existing rule.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Record, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str("rule_id", id).Msg("Error getting discount rule")
		return Record{}, apperr.Internal("Failed to update discount rule", err)
	}
	if current == nil {
		return Record{}, apperr.NotFound("Discount rule not found")
	}

	next := p.Apply(*current)
	next.ApplyDefaults()
	if _, err := next.Rule(); err != nil {
		return Record{}, apperr.Validation(err.Error())
	}

	updated, err := s.store.Replace(ctx, next)
	if errors.Is(err, ErrNotFound) {
		return Record{}, apperr.NotFound("Discount rule not found")
	}
	if err != nil {
		logger.Error().Err(err).Str("rule_id", id).Msg("Error updating discount rule")
		return Record{}, apperr.Internal("Failed to update discount rule", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Discount rule not found")
	}
	if err != nil {
		logger.Error().Err(err).Str("rule_id", id).Msg("Error deleting discount rule")
		return apperr.Internal("Failed to delete discount rule", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warn().Err(err).Msg("Error invalidating active rules cache")
	}
}
