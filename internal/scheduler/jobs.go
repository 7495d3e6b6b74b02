package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
)

// Job names, also used as metric labels.
const (
	JobEvents    = "events"
	JobGiveaways = "giveaways"
	JobVIP       = "vip"
	JobMissions  = "missions"
	JobWeekly    = "weekly"
)

// Register wires the bot sweeps onto s according to rules.
func Register(s *Scheduler, svc *service.Services, rules config.ScheduleRules) error {
	weekday, err := config.ParseWeekday(rules.WeeklyWeekday)
	if err != nil {
		return err
	}

	// Events and promos share the expiry cadence.
	s.Every(JobEvents, rules.EventSweep, func(ctx context.Context, now time.Time) error {
		_, evErr := svc.Events.Sweep(ctx, now)
		_, promoErr := svc.Promos.SweepExpired(ctx, now)
		return errors.Join(evErr, promoErr)
	})
	s.Every(JobGiveaways, rules.GiveawaySweep, func(ctx context.Context, now time.Time) error {
		_, _, err := svc.Giveaways.Sweep(ctx, now)
		return err
	})
	s.Every(JobVIP, rules.VIPSweep, func(ctx context.Context, now time.Time) error {
		_, _, err := svc.Economy.SweepVIP(ctx, now)
		return err
	})
	s.Daily(JobMissions, rules.MissionHourUTC, func(ctx context.Context, now time.Time) error {
		_, _, err := svc.Missions.AssignAll(ctx, now)
		return err
	})
	s.Weekly(JobWeekly, weekday, rules.WeeklyHourUTC, svc.Leaderboard.RunWeekly)
	return nil
}
