package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

type UserRepository struct {
	db   DBTX
	lock bool
}

func (r *UserRepository) User(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT doc FROM users WHERE id = $1`+forUpdate(r.lock), id)
	return scanDoc[domain.User](row)
}

// Users filters and ranks members. The counter name is validated against the
// known ledger fields before it reaches SQL.
func (r *UserRepository) Users(ctx context.Context, q store.UserQuery) ([]*domain.User, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.HasVIP {
		where = append(where, `doc ? 'vip_premium'`)
	}
	if q.HasGuildBonus {
		where = append(where, `doc ? 'guild_bonus'`)
	}
	order := "id"
	if q.Field != "" {
		if _, err := domain.ParseField(string(q.Field)); err != nil {
			return nil, err
		}
		expr := fmt.Sprintf("COALESCE((doc->>(%s::text))::numeric, 0)", arg(string(q.Field)))
		where = append(where, fmt.Sprintf("%s > %s::numeric", expr, arg(q.Min.String())))
		order = expr + " DESC, id"
	}

	sql := `SELECT doc FROM users`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY ` + order + ` LIMIT ` + arg(limitArg(q.Limit))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanDocs[domain.User](rows)
}

func (r *UserRepository) PutUser(ctx context.Context, u *domain.User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO users (id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, u.ID, doc)
	return err
}
