package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

var durationPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration reads compact durations such as "2d", "8h", "1d12h30m".
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		total += time.Duration(n) * unit
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return total, nil
}

// EventState owns the set of running server events. Reads are served from
// memory; every change is persisted before it becomes visible.
type EventState struct {
	mu     sync.RWMutex
	active domain.EventSet

	// writeMu serializes load, start, stop and sweep.
	writeMu sync.Mutex

	store     store.Store
	rules     *config.Rules
	announcer *Announcer
	now       func() time.Time
	log       *slog.Logger
}

func NewEventState(d Deps, announcer *Announcer) *EventState {
	return &EventState{
		active:    domain.EventSet{},
		store:     d.Store,
		rules:     d.Rules,
		announcer: announcer,
		now:       d.Now,
		log:       logger.Component("events"),
	}
}

// Load replaces the in-memory set with the persisted one.
func (e *EventState) Load(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	events, err := e.store.Events(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	e.swap(events)
	e.log.Info("active events loaded", "count", len(events))
	return nil
}

func (e *EventState) swap(next domain.EventSet) {
	e.mu.Lock()
	e.active = next
	e.mu.Unlock()
}

func (e *EventState) snapshot() domain.EventSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active.Clone()
}

func (e *EventState) persist(ctx context.Context, next domain.EventSet, audit func(ctx context.Context, tx store.Tx) error) error {
	return e.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutEvents(ctx, next); err != nil {
			return err
		}
		if audit != nil {
			return audit(ctx, tx)
		}
		return nil
	})
}

// Start runs the configured event id for d.
func (e *EventState) Start(ctx context.Context, id string, d time.Duration, startedBy string) (domain.ActiveEvent, error) {
	def, ok := e.rules.Events.Find(id)
	if !ok {
		return domain.ActiveEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, id)
	}
	if d <= 0 {
		return domain.ActiveEvent{}, ErrInvalidDuration
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := e.now()
	next := e.snapshot()
	if cur, ok := next[id]; ok && !cur.Expired(now) {
		return domain.ActiveEvent{}, fmt.Errorf("%w: %s", ErrEventActive, def.Name)
	}
	ev := domain.ActiveEvent{
		ID:         def.ID,
		Name:       def.Name,
		EndsAt:     now.Add(d),
		Multiplier: def.Multiplier,
		Bonus:      def.Bonus,
		StartedBy:  startedBy,
	}
	next[id] = ev

	err := e.persist(ctx, next, func(ctx context.Context, tx store.Tx) error {
		return appendAudit(ctx, tx, startedBy, "", domain.AuditActionEventStart, domain.AuditCategoryEvent,
			map[string]interface{}{"event": id, "ends_at": ev.EndsAt})
	})
	if err != nil {
		return domain.ActiveEvent{}, err
	}
	e.swap(next)

	_, _ = e.announcer.Post(ctx, e.rules.Channels.Announcements, KindEvent, domain.Message{
		Title:       fmt.Sprintf("🎉 Événement Serveur Activé : %s ! 🎉", def.Name),
		Description: fmt.Sprintf("Profitez-en jusqu'au <t:%d:F> !", ev.EndsAt.Unix()),
		Color:       domain.ColorGold,
	})
	return ev, nil
}

// Stop ends a running event before its expiry.
func (e *EventState) Stop(ctx context.Context, id, stoppedBy string) (domain.ActiveEvent, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	next := e.snapshot()
	ev, ok := next[id]
	if !ok {
		return domain.ActiveEvent{}, fmt.Errorf("%w: %s", ErrEventNotActive, id)
	}
	delete(next, id)

	err := e.persist(ctx, next, func(ctx context.Context, tx store.Tx) error {
		return appendAudit(ctx, tx, stoppedBy, "", domain.AuditActionEventStop, domain.AuditCategoryEvent,
			map[string]interface{}{"event": id})
	})
	if err != nil {
		return domain.ActiveEvent{}, err
	}
	e.swap(next)
	return ev, nil
}

// Active lists running events, soonest expiry first.
func (e *EventState) Active() []domain.ActiveEvent {
	now := e.now()
	e.mu.RLock()
	out := make([]domain.ActiveEvent, 0, len(e.active))
	for _, ev := range e.active {
		if !ev.Expired(now) {
			out = append(out, ev)
		}
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.ActiveEvent) int { return a.EndsAt.Compare(b.EndsAt) })
	return out
}

// XPMultiplier is the running double-XP multiplier, 1 when none.
func (e *EventState) XPMultiplier() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ev, ok := e.active[domain.EventDoubleXP]
	if !ok || ev.Expired(e.now()) || ev.Multiplier <= 0 {
		return 1.0
	}
	return ev.Multiplier
}

// CommissionBonus sums the commission bonus of every running event.
func (e *EventState) CommissionBonus() float64 {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	var bonus float64
	for _, ev := range e.active {
		if !ev.Expired(now) {
			bonus += ev.Bonus
		}
	}
	return bonus
}

// Sweep drops expired events and returns how many ended.
func (e *EventState) Sweep(ctx context.Context, now time.Time) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	next := e.snapshot()
	var ended []domain.ActiveEvent
	for id, ev := range next {
		if ev.Expired(now) {
			ended = append(ended, ev)
			delete(next, id)
		}
	}
	if len(ended) == 0 {
		return 0, nil
	}
	if err := e.persist(ctx, next, nil); err != nil {
		return 0, err
	}
	e.swap(next)

	for _, ev := range ended {
		e.log.Info("event ended", "event", ev.ID)
		_, _ = e.announcer.Post(ctx, e.rules.Channels.Announcements, KindEvent, domain.Message{
			Title:       fmt.Sprintf("L'événement %s est terminé.", ev.Name),
			Description: "Merci à tous pour votre participation !",
			Color:       domain.ColorGrey,
		})
	}
	return len(ended), nil
}
