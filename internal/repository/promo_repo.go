package repository

import (
	"context"
	"encoding/json"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
)

type PromoRepository struct {
	db DBTX
}

func (r *PromoRepository) Promos(ctx context.Context) ([]*domain.Promo, error) {
	rows, err := r.db.Query(ctx, `SELECT doc FROM active_promos ORDER BY expires_at ASC`)
	if err != nil {
		return nil, err
	}
	return scanDocs[domain.Promo](rows)
}

func (r *PromoRepository) PutPromo(ctx context.Context, p *domain.Promo) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO active_promos (id, doc, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, expires_at = EXCLUDED.expires_at
	`, p.ID, doc, p.ExpiresAt)
	return err
}

func (r *PromoRepository) DeletePromo(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM active_promos WHERE id = $1`, id)
	return err
}
