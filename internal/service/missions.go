package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

const jobMissions = "missions"

type MissionService struct {
	Deps
	xp        *XPService
	announcer *Announcer
	log       *slog.Logger
}

func NewMissionService(d Deps, xp *XPService, announcer *Announcer) *MissionService {
	return &MissionService{Deps: d, xp: xp, announcer: announcer, log: logger.Component("missions")}
}

// Progress advances the user's daily and weekly missions matching action.
// Completed missions pay their XP reward once.
func (s *MissionService) Progress(ctx context.Context, userID, action string, amount int) error {
	if !s.Rules.Missions.Enabled || amount <= 0 {
		return nil
	}
	var (
		completed []domain.Mission
		optIn     bool
	)
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		completed = completed[:0]
		u, err := tx.User(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		optIn = u.MissionsOptIn
		changed := false
		for _, m := range []*domain.Mission{u.DailyMission, u.WeeklyMission} {
			if m == nil || m.Completed || m.ID != action {
				continue
			}
			changed = true
			if m.Advance(amount) {
				completed = append(completed, *m)
			}
		}
		if !changed {
			return nil
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("mission progress: %w", err)
	}

	for _, m := range completed {
		if _, err := s.xp.GrantXP(ctx, userID, m.RewardXP, SourceMission, "Mission complétée: "+m.Description); err != nil {
			s.log.Error("mission reward failed", "user_id", userID, "mission", m.ID, "error", err)
			continue
		}
		if optIn {
			s.announcer.DM(ctx, userID, Text(fmt.Sprintf(
				"✅ Mission %s complétée : *%s* ! Vous gagnez **%d XP**.", missionLabel(m.Type), m.Description, m.RewardXP)))
		}
	}
	return nil
}

func missionLabel(t domain.MissionType) string {
	if t == domain.MissionWeekly {
		return "hebdomadaire"
	}
	return "quotidienne"
}

// ToggleOptIn flips mission direct messages and returns the new setting.
func (s *MissionService) ToggleOptIn(ctx context.Context, userID string) (bool, error) {
	var enabled bool
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		u.MissionsOptIn = !u.MissionsOptIn
		enabled = u.MissionsOptIn
		return tx.PutUser(ctx, u)
	})
	return enabled, err
}

// pick draws a template by weight (weight 0 counts as 1) and rolls its target and reward.
func (s *MissionService) pick(pool []config.MissionTemplate, t domain.MissionType, now time.Time) *domain.Mission {
	if len(pool) == 0 {
		return nil
	}
	total := 0
	for _, tpl := range pool {
		total += max(tpl.Weight, 1)
	}
	roll := s.Rand.IntN(total)
	tpl := pool[len(pool)-1]
	for _, candidate := range pool {
		roll -= max(candidate.Weight, 1)
		if roll < 0 {
			tpl = candidate
			break
		}
	}
	target := int(randRange(s.Rand, int64(tpl.TargetRange[0]), int64(tpl.TargetRange[1])))
	return &domain.Mission{
		ID:          tpl.ID,
		Type:        t,
		Description: strings.ReplaceAll(tpl.Description, "{target}", strconv.Itoa(target)),
		Target:      target,
		RewardXP:    randRange(s.Rand, tpl.RewardXPRange[0], tpl.RewardXPRange[1]),
		AssignedAt:  now,
	}
}

// AssignAll hands every member a new daily mission, plus a weekly one on the
// configured weekday. Each member is updated in its own transaction; failures
// are counted and skipped.
func (s *MissionService) AssignAll(ctx context.Context, now time.Time) (assigned, failed int, err error) {
	if !s.Rules.Missions.Enabled {
		return 0, 0, nil
	}
	weekday, err := config.ParseWeekday(s.Rules.Missions.WeeklyWeekday)
	if err != nil {
		return 0, 0, err
	}
	weekly := now.Weekday() == weekday
	daily := s.Catalog.Templates(domain.MissionDaily)
	weeklyPool := s.Catalog.Templates(domain.MissionWeekly)

	users, err := s.Store.Users(ctx, store.UserQuery{})
	if err != nil {
		return 0, 0, fmt.Errorf("list users: %w", err)
	}
	for _, listed := range users {
		if ctx.Err() != nil {
			return assigned, failed, ctx.Err()
		}
		var d, w *domain.Mission
		var optIn bool
		err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
			u, err := tx.User(ctx, listed.ID)
			if err != nil {
				return err
			}
			d = s.pick(daily, domain.MissionDaily, now)
			u.DailyMission = d
			if weekly {
				w = s.pick(weeklyPool, domain.MissionWeekly, now)
				u.WeeklyMission = w
			}
			optIn = u.MissionsOptIn
			return tx.PutUser(ctx, u)
		})
		if err != nil {
			failed++
			metrics.SweepEntityFailures.WithLabelValues(jobMissions).Inc()
			s.log.Error("mission assignment failed", "user_id", listed.ID, "error", err)
			continue
		}
		assigned++
		if optIn && d != nil {
			s.notifyAssigned(ctx, listed.ID, d, w)
		}
	}
	s.log.Info("missions assigned", "assigned", assigned, "failed", failed, "weekly", weekly)
	return assigned, failed, nil
}

func (s *MissionService) notifyAssigned(ctx context.Context, userID string, daily, weekly *domain.Mission) {
	msg := domain.Message{
		Title: "📅 Vos nouvelles missions",
		Color: domain.ColorBlue,
		Fields: []domain.MessageField{{
			Name:  "Mission quotidienne",
			Value: fmt.Sprintf("%s\n*Récompense : %d XP*", daily.Description, daily.RewardXP),
		}},
		Buttons: []domain.Button{{
			Label:    "Activer/Désactiver les notifications de mission",
			ActionID: domain.ActionID(domain.ActionMissionToggle, ""),
			Style:    domain.ButtonSecondary,
		}},
	}
	if weekly != nil {
		msg.Fields = append(msg.Fields, domain.MessageField{
			Name:  "Mission hebdomadaire",
			Value: fmt.Sprintf("%s\n*Récompense : %d XP*", weekly.Description, weekly.RewardXP),
		})
	}
	s.announcer.DM(ctx, userID, msg)
}
