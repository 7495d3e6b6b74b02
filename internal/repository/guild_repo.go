package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrGuildNameTaken is returned when the unique name index rejects a write.
var ErrGuildNameTaken = errors.New("guild name taken")

type GuildRepository struct {
	db   DBTX
	lock bool
}

func (r *GuildRepository) Guild(ctx context.Context, id string) (*domain.Guild, error) {
	row := r.db.QueryRow(ctx, `SELECT doc FROM guilds WHERE id = $1`+forUpdate(r.lock), id)
	return scanDoc[domain.Guild](row)
}

func (r *GuildRepository) GuildByName(ctx context.Context, nameLower string) (*domain.Guild, error) {
	row := r.db.QueryRow(ctx, `SELECT doc FROM guilds WHERE name_lower = $1`+forUpdate(r.lock), nameLower)
	return scanDoc[domain.Guild](row)
}

func (r *GuildRepository) Guilds(ctx context.Context, q store.GuildQuery) ([]*domain.Guild, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doc FROM guilds
		WHERE weekly_xp >= $1
		ORDER BY weekly_xp DESC, id
		LIMIT $2
	`, q.MinWeeklyXP, limitArg(q.Limit))
	if err != nil {
		return nil, err
	}
	return scanDocs[domain.Guild](rows)
}

func (r *GuildRepository) PutGuild(ctx context.Context, g *domain.Guild) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO guilds (id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, g.ID, doc)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrGuildNameTaken
	}
	return err
}

func (r *GuildRepository) DeleteGuild(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM guilds WHERE id = $1`, id)
	return err
}
