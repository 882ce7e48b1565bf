package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/careline/careline/internal/referral"
	"github.com/jackc/pgx/v5"
)

// CreateDecisionCard inserts a new card. Re-orchestrating a referral
// always inserts a fresh card; the latest by creation time wins.
func (s *Store) CreateDecisionCard(ctx context.Context, c *referral.DecisionCard) error {
	providers, _ := json.Marshal(c.Providers)
	availability, _ := json.Marshal(c.Availability)
	estimates, _ := json.Marshal(c.CostEstimates)
	var explainer []byte
	if c.PatientExplainer != nil {
		explainer, _ = json.Marshal(c.PatientExplainer)
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO decision_cards (referral_id, providers, availability, cost_estimates, patient_explainer)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		c.ReferralID, providers, availability, estimates, explainer,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create decision card: %w", err)
	}
	return nil
}

// GetLatestDecisionCard returns the authoritative card for a referral.
func (s *Store) GetLatestDecisionCard(ctx context.Context, referralID string) (*referral.DecisionCard, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, referral_id, providers, availability, cost_estimates, patient_explainer, created_at
		 FROM decision_cards WHERE referral_id = $1 ORDER BY created_at DESC LIMIT 1`, referralID)

	card, err := scanDecisionCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("decision card for %s: %w", referralID, referral.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision card for %s: %w", referralID, err)
	}
	return card, nil
}

// ListDecisionCards returns every card generated for a referral,
// newest first.
func (s *Store) ListDecisionCards(ctx context.Context, referralID string) ([]*referral.DecisionCard, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, referral_id, providers, availability, cost_estimates, patient_explainer, created_at
		 FROM decision_cards WHERE referral_id = $1 ORDER BY created_at DESC`, referralID)
	if err != nil {
		return nil, fmt.Errorf("list decision cards for %s: %w", referralID, err)
	}
	defer rows.Close()

	var cards []*referral.DecisionCard
	for rows.Next() {
		card, err := scanDecisionCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func scanDecisionCard(row pgx.Row) (*referral.DecisionCard, error) {
	var c referral.DecisionCard
	var providers, availability, estimates, explainer []byte
	if err := row.Scan(&c.ID, &c.ReferralID, &providers, &availability, &estimates, &explainer, &c.CreatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(providers, &c.Providers)
	_ = json.Unmarshal(availability, &c.Availability)
	_ = json.Unmarshal(estimates, &c.CostEstimates)
	if len(explainer) > 0 {
		_ = json.Unmarshal(explainer, &c.PatientExplainer)
	}
	return &c, nil
}
