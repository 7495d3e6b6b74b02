package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

// Keys of the singleton rows in system_state.
const (
	systemKeyEvents  = "events"
	systemKeyLottery = "lottery"
)

type SystemRepository struct {
	db   DBTX
	lock bool
}

func (r *SystemRepository) Events(ctx context.Context) (domain.EventSet, error) {
	row := r.db.QueryRow(ctx, `SELECT doc FROM system_state WHERE key = $1`+forUpdate(r.lock), systemKeyEvents)
	set, err := scanDoc[domain.EventSet](row)
	if errors.Is(err, store.ErrNotFound) {
		return domain.EventSet{}, nil
	}
	if err != nil {
		return nil, err
	}
	if *set == nil {
		return domain.EventSet{}, nil
	}
	return *set, nil
}

func (r *SystemRepository) Lottery(ctx context.Context) (*domain.LotteryPot, error) {
	row := r.db.QueryRow(ctx, `SELECT doc FROM system_state WHERE key = $1`+forUpdate(r.lock), systemKeyLottery)
	pot, err := scanDoc[domain.LotteryPot](row)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.LotteryPot{}, nil
	}
	return pot, err
}

func (r *SystemRepository) PutEvents(ctx context.Context, events domain.EventSet) error {
	if events == nil {
		events = domain.EventSet{}
	}
	return r.put(ctx, systemKeyEvents, events)
}

func (r *SystemRepository) PutLottery(ctx context.Context, pot *domain.LotteryPot) error {
	return r.put(ctx, systemKeyLottery, pot)
}

func (r *SystemRepository) put(ctx context.Context, key string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO system_state (key, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, key, doc)
	return err
}
