package store

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
)

// collection is an insertion-ordered map of documents.
type collection[T any] struct {
	items map[string]T
	order []string
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[string]T)}
}

func (c *collection[T]) set(id string, item T) {
	if _, exists := c.items[id]; !exists {
		c.order = append(c.order, id)
	}
	c.items[id] = item
}

func (c *collection[T]) delete(id string) {
	if _, exists := c.items[id]; !exists {
		return
	}
	delete(c.items, id)
	c.order = slices.DeleteFunc(c.order, func(oid string) bool { return oid == id })
}

// overlay buffers a transaction's writes to one collection.
type overlay[T any] struct {
	puts map[string]T
	dels map[string]bool
	seq  []string
}

func newOverlay[T any]() *overlay[T] {
	return &overlay[T]{puts: make(map[string]T), dels: make(map[string]bool)}
}

func (o *overlay[T]) put(id string, item T) {
	if _, ok := o.puts[id]; !ok {
		o.seq = append(o.seq, id)
	}
	o.puts[id] = item
	delete(o.dels, id)
}

func (o *overlay[T]) del(id string) {
	delete(o.puts, id)
	o.dels[id] = true
}

func (o *overlay[T]) apply(c *collection[T]) {
	for id := range o.dels {
		c.delete(id)
	}
	for _, id := range o.seq {
		if item, ok := o.puts[id]; ok {
			c.set(id, item)
		}
	}
}

func lookup[T any](c *collection[T], o *overlay[T], id string) (T, bool) {
	if o != nil {
		if o.dels[id] {
			var zero T
			return zero, false
		}
		if item, ok := o.puts[id]; ok {
			return item, true
		}
	}
	item, ok := c.items[id]
	return item, ok
}

func merged[T any](c *collection[T], o *overlay[T]) []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		if item, ok := lookup(c, o, id); ok {
			out = append(out, item)
		}
	}
	if o != nil {
		for _, id := range o.seq {
			if _, inBase := c.items[id]; inBase {
				continue
			}
			if item, ok := o.puts[id]; ok {
				out = append(out, item)
			}
		}
	}
	return out
}

// clone deep-copies a document so callers never share memory with the store.
func clone[T any](v T) T {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		panic("store: clone marshal: " + err.Error())
	}
	if err := json.Unmarshal(b, &out); err != nil {
		panic("store: clone unmarshal: " + err.Error())
	}
	return out
}

// Memory is an in-process Store. Transactions are serialised and buffer their
// writes until commit, so a failing fn leaves no trace.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users     *collection[*domain.User]
	guilds    *collection[*domain.Guild]
	giveaways *collection[*domain.Giveaway]
	cashouts  *collection[*domain.PendingCashout]
	promos    *collection[*domain.Promo]
	events    domain.EventSet
	lottery   *domain.LotteryPot
	audit     []*domain.AuditLog
	auditSeq  int64
}

func NewMemory() *Memory {
	return &Memory{
		users:     newCollection[*domain.User](),
		guilds:    newCollection[*domain.Guild](),
		giveaways: newCollection[*domain.Giveaway](),
		cashouts:  newCollection[*domain.PendingCashout](),
		promos:    newCollection[*domain.Promo](),
		events:    domain.EventSet{},
		lottery:   &domain.LotteryPot{},
	}
}

func (m *Memory) Close() {}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// RunTx runs fn with exclusive write access and commits its buffered writes
// when fn returns nil.
func (m *Memory) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{
		m:         m,
		users:     newOverlay[*domain.User](),
		guilds:    newOverlay[*domain.Guild](),
		giveaways: newOverlay[*domain.Giveaway](),
		cashouts:  newOverlay[*domain.PendingCashout](),
		promos:    newOverlay[*domain.Promo](),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tx.users.apply(m.users)
	tx.guilds.apply(m.guilds)
	tx.giveaways.apply(m.giveaways)
	tx.cashouts.apply(m.cashouts)
	tx.promos.apply(m.promos)
	if tx.events != nil {
		m.events = tx.events
	}
	if tx.lottery != nil {
		m.lottery = tx.lottery
	}
	for _, a := range tx.audit {
		m.auditSeq++
		a.ID = m.auditSeq
		m.audit = append(m.audit, a)
	}
	return nil
}

func (m *Memory) view() *memTx {
	return &memTx{m: m}
}

func (m *Memory) User(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().User(ctx, id)
}

func (m *Memory) Users(ctx context.Context, q UserQuery) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Users(ctx, q)
}

func (m *Memory) Guild(ctx context.Context, id string) (*domain.Guild, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Guild(ctx, id)
}

func (m *Memory) GuildByName(ctx context.Context, nameLower string) (*domain.Guild, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GuildByName(ctx, nameLower)
}

func (m *Memory) Guilds(ctx context.Context, q GuildQuery) ([]*domain.Guild, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Guilds(ctx, q)
}

func (m *Memory) Giveaway(ctx context.Context, messageID string) (*domain.Giveaway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Giveaway(ctx, messageID)
}

func (m *Memory) DueGiveaways(ctx context.Context, now time.Time) ([]*domain.Giveaway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().DueGiveaways(ctx, now)
}

func (m *Memory) Cashout(ctx context.Context, id string) (*domain.PendingCashout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Cashout(ctx, id)
}

func (m *Memory) Events(ctx context.Context) (domain.EventSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Events(ctx)
}

func (m *Memory) Lottery(ctx context.Context) (*domain.LotteryPot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Lottery(ctx)
}

func (m *Memory) Promos(ctx context.Context) ([]*domain.Promo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Promos(ctx)
}

func (m *Memory) AuditLog(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().AuditLog(ctx, limit)
}

// memTx reads through its overlays into the committed state. A view (nil
// overlays) is the read-only form used outside transactions.
type memTx struct {
	m *Memory

	users     *overlay[*domain.User]
	guilds    *overlay[*domain.Guild]
	giveaways *overlay[*domain.Giveaway]
	cashouts  *overlay[*domain.PendingCashout]
	promos    *overlay[*domain.Promo]
	events    domain.EventSet
	lottery   *domain.LotteryPot
	audit     []*domain.AuditLog
}

func (t *memTx) User(_ context.Context, id string) (*domain.User, error) {
	u, ok := lookup(t.m.users, t.users, id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (t *memTx) Users(_ context.Context, q UserQuery) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range merged(t.m.users, t.users) {
		if q.HasVIP && u.VIP == nil {
			continue
		}
		if q.HasGuildBonus && u.GuildBonus == nil {
			continue
		}
		if q.Field != "" {
			v, err := u.Value(q.Field)
			if err != nil {
				return nil, err
			}
			if !v.GreaterThan(q.Min) {
				continue
			}
		}
		out = append(out, u)
	}
	if q.Field != "" {
		slices.SortStableFunc(out, func(a, b *domain.User) int {
			av, _ := a.Value(q.Field)
			bv, _ := b.Value(q.Field)
			return bv.Cmp(av)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i, u := range out {
		out[i] = clone(u)
	}
	return out, nil
}

func (t *memTx) Guild(_ context.Context, id string) (*domain.Guild, error) {
	g, ok := lookup(t.m.guilds, t.guilds, id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(g), nil
}

func (t *memTx) GuildByName(_ context.Context, nameLower string) (*domain.Guild, error) {
	for _, g := range merged(t.m.guilds, t.guilds) {
		if g.NameLower == nameLower {
			return clone(g), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) Guilds(_ context.Context, q GuildQuery) ([]*domain.Guild, error) {
	var out []*domain.Guild
	for _, g := range merged(t.m.guilds, t.guilds) {
		if g.WeeklyXP < q.MinWeeklyXP {
			continue
		}
		out = append(out, g)
	}
	slices.SortStableFunc(out, func(a, b *domain.Guild) int {
		return cmp.Compare(b.WeeklyXP, a.WeeklyXP)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i, g := range out {
		out[i] = clone(g)
	}
	return out, nil
}

func (t *memTx) Giveaway(_ context.Context, messageID string) (*domain.Giveaway, error) {
	g, ok := lookup(t.m.giveaways, t.giveaways, messageID)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(g), nil
}

func (t *memTx) DueGiveaways(_ context.Context, now time.Time) ([]*domain.Giveaway, error) {
	var out []*domain.Giveaway
	for _, g := range merged(t.m.giveaways, t.giveaways) {
		if !g.EndTime.After(now) {
			out = append(out, clone(g))
		}
	}
	return out, nil
}

func (t *memTx) Cashout(_ context.Context, id string) (*domain.PendingCashout, error) {
	c, ok := lookup(t.m.cashouts, t.cashouts, id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (t *memTx) Events(_ context.Context) (domain.EventSet, error) {
	if t.events != nil {
		return t.events.Clone(), nil
	}
	return t.m.events.Clone(), nil
}

func (t *memTx) Lottery(_ context.Context) (*domain.LotteryPot, error) {
	if t.lottery != nil {
		return clone(t.lottery), nil
	}
	return clone(t.m.lottery), nil
}

func (t *memTx) Promos(_ context.Context) ([]*domain.Promo, error) {
	items := merged(t.m.promos, t.promos)
	out := make([]*domain.Promo, len(items))
	for i, p := range items {
		out[i] = clone(p)
	}
	return out, nil
}

func (t *memTx) AuditLog(_ context.Context, limit int) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for i := len(t.m.audit) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, clone(t.m.audit[i]))
	}
	return out, nil
}

func (t *memTx) PutUser(_ context.Context, u *domain.User) error {
	t.users.put(u.ID, clone(u))
	return nil
}

func (t *memTx) PutGuild(_ context.Context, g *domain.Guild) error {
	t.guilds.put(g.ID, clone(g))
	return nil
}

func (t *memTx) DeleteGuild(_ context.Context, id string) error {
	t.guilds.del(id)
	return nil
}

func (t *memTx) PutGiveaway(_ context.Context, g *domain.Giveaway) error {
	t.giveaways.put(g.MessageID, clone(g))
	return nil
}

func (t *memTx) DeleteGiveaway(_ context.Context, messageID string) error {
	t.giveaways.del(messageID)
	return nil
}

func (t *memTx) PutCashout(_ context.Context, c *domain.PendingCashout) error {
	t.cashouts.put(c.ID, clone(c))
	return nil
}

func (t *memTx) DeleteCashout(_ context.Context, id string) error {
	t.cashouts.del(id)
	return nil
}

func (t *memTx) PutEvents(_ context.Context, events domain.EventSet) error {
	t.events = events.Clone()
	return nil
}

func (t *memTx) PutLottery(_ context.Context, pot *domain.LotteryPot) error {
	t.lottery = clone(pot)
	return nil
}

func (t *memTx) PutPromo(_ context.Context, p *domain.Promo) error {
	t.promos.put(p.ID, clone(p))
	return nil
}

func (t *memTx) DeletePromo(_ context.Context, id string) error {
	t.promos.del(id)
	return nil
}

func (t *memTx) AppendAudit(_ context.Context, entry *domain.AuditLog) error {
	a := clone(entry)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	t.audit = append(t.audit, a)
	return nil
}

var _ Store = (*Memory)(nil)
