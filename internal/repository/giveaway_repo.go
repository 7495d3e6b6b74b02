package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/jackc/pgx/v5"
)

type GiveawayRepository struct {
	db   DBTX
	lock bool
}

const giveawayColumns = `message_id, channel_id, end_time, winner_count, prize, host_id`

func (r *GiveawayRepository) Giveaway(ctx context.Context, messageID string) (*domain.Giveaway, error) {
	row := r.db.QueryRow(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE message_id = $1`+forUpdate(r.lock), messageID)
	g, err := scanGiveaway(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

// DueGiveaways lists giveaways whose end time has passed, oldest first.
func (r *GiveawayRepository) DueGiveaways(ctx context.Context, now time.Time) ([]*domain.Giveaway, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+giveawayColumns+`
		FROM giveaways
		WHERE end_time <= $1
		ORDER BY end_time ASC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GiveawayRepository) PutGiveaway(ctx context.Context, g *domain.Giveaway) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO giveaways (`+giveawayColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			end_time = EXCLUDED.end_time,
			winner_count = EXCLUDED.winner_count,
			prize = EXCLUDED.prize,
			host_id = EXCLUDED.host_id
	`, g.MessageID, g.ChannelID, g.EndTime, g.WinnerCount, g.Prize, g.HostID)
	return err
}

func (r *GiveawayRepository) DeleteGiveaway(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM giveaways WHERE message_id = $1`, messageID)
	return err
}

func scanGiveaway(row pgx.Row) (*domain.Giveaway, error) {
	var g domain.Giveaway
	if err := row.Scan(&g.MessageID, &g.ChannelID, &g.EndTime, &g.WinnerCount, &g.Prize, &g.HostID); err != nil {
		return nil, err
	}
	return &g, nil
}
