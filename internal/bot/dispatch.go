package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/shopspring/decimal"
)

const leaderboardSize = 10

// Modal field ids.
const (
	fieldAmount = "montant"
	fieldPaypal = "paypal"
	fieldProof  = "preuve"
)

type textInput struct {
	ID          string
	Label       string
	Placeholder string
	Long        bool
}

type modal struct {
	ID     string
	Title  string
	Inputs []textInput
}

type selectOption struct {
	Label       string
	Value       string
	Description string
	Emoji       string
}

type selectMenu struct {
	ID          string
	Placeholder string
	Options     []selectOption
}

// response is what the bot answers to one interaction.
type response struct {
	msg        domain.Message
	ephemeral  bool
	selectMenu *selectMenu
	modal      *modal
	// update edits the message carrying the clicked component.
	update bool
	// then runs after the reply went out.
	then func(ctx context.Context) error
}

func reply(text string) response {
	return response{msg: service.Text(text), ephemeral: true}
}

// Dispatcher routes decoded interactions to the services.
type Dispatcher struct {
	svc     *service.Services
	rules  *config.Rules
	tokens *service.StaffTokens
	log    *slog.Logger
}

// NewDispatcher builds the router. tokens may be nil when the admin API is off.
func NewDispatcher(svc *service.Services, rules *config.Rules, tokens *service.StaffTokens) *Dispatcher {
	return &Dispatcher{
		svc:    svc,
		rules:  rules,
		tokens: tokens,
		log:    logger.Component("dispatch"),
	}
}

// Handle runs one interaction and returns the reply. Failures become an
// ephemeral denial.
func (d *Dispatcher) Handle(ctx context.Context, in Interaction) response {
	var (
		res response
		err error
	)
	switch v := in.(type) {
	case SlashCommand:
		res, err = d.command(ctx, v)
	case ButtonPress:
		res, err = d.button(ctx, v)
	case SelectChoice:
		res, err = d.selection(ctx, v)
	case ModalSubmit:
		res, err = d.modalSubmit(ctx, v)
	default:
		err = errUnsupportedInteraction
	}

	outcome := metrics.OK
	if err != nil {
		text, known := denial(err)
		if known {
			outcome = metrics.Rejected
			d.log.Debug("interaction rejected", "kind", in.Kind(), "user_id", in.Actor().ID, "reason", err)
		} else {
			outcome = metrics.Failed
			d.log.Error("interaction failed", "kind", in.Kind(), "user_id", in.Actor().ID, "error", err)
		}
		res = reply(text)
	}
	metrics.Interactions.WithLabelValues(in.Kind(), outcome).Inc()
	return res
}

func (d *Dispatcher) requireAdmin(m service.Member) error {
	if !d.rules.IsAdmin(m.ID) {
		return service.ErrNotAdmin
	}
	return nil
}

func (d *Dispatcher) requireStaff(m service.Member) error {
	if d.rules.IsAdmin(m.ID) || d.rules.HasStaffRole(m.Roles) {
		return nil
	}
	return service.ErrNotAdmin
}

func (d *Dispatcher) command(ctx context.Context, c SlashCommand) (response, error) {
	switch c.Name {
	case "guilde":
		return d.guildCommand(ctx, c)
	case "event":
		return d.eventCommand(ctx, c)
	case "loterie":
		res, err := d.svc.Lottery.Join(ctx, c.Member.ID, c.Member.DisplayName, decimal.Zero)
		if err != nil {
			return response{}, err
		}
		return lotteryReply(res), nil
	case "boutique":
		return d.shopMenu(), nil
	case "classement":
		return d.leaderboard(ctx, c.String("categorie"))
	case "giveaway":
		return d.giveawayCommand(ctx, c)
	case "retrait":
		return response{modal: cashoutModal()}, nil
	case "profil":
		target := c.Member
		if m, ok := c.User("membre"); ok {
			target = m
		}
		return d.profile(ctx, target)
	case "missions":
		return d.missions(ctx, c.Member)
	case "ticket":
		return d.ticketMenu(), nil
	case "defi":
		return response{modal: &modal{
			ID:    domain.ActionID(domain.ActionChallenge, c.String("type")),
			Title: "Soumettre une preuve",
			Inputs: []textInput{{
				ID: fieldProof, Label: "Lien ou description de votre preuve", Long: true,
			}},
		}}, nil
	case "promo":
		if err := d.requireStaff(c.Member); err != nil {
			return response{}, err
		}
		p, err := d.svc.Promos.Create(ctx, c.String("produit"), c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("✅ Promo publiée dans <#%s>, expire %s.", p.ChannelID, timestamp(p.ExpiresAt))), nil
	case "admin":
		return d.adminCommand(ctx, c)
	}
	return response{}, fmt.Errorf("%w: command %q", errUnsupportedInteraction, c.Name)
}

func (d *Dispatcher) guildCommand(ctx context.Context, c SlashCommand) (response, error) {
	switch c.Sub {
	case "create":
		g, err := d.svc.Guilds.Create(ctx, c.Member.ID, c.String("nom"), c.String("couleur"))
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("✅ La guilde **%s** est créée ! Votre salon : <#%s>", g.Name, g.TextChannelID)), nil
	case "info":
		g, err := d.svc.Guilds.Info(ctx, c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return response{msg: guildCard(g), ephemeral: true}, nil
	case "invite":
		target, ok := c.User("membre")
		if !ok {
			return response{}, service.ErrMemberNotFound
		}
		if err := d.svc.Guilds.Invite(ctx, c.Member.ID, target); err != nil {
			return response{}, err
		}
		return reply("📨 Invitation envoyée à " + target.Mention() + "."), nil
	case "leave":
		g, err := d.svc.Guilds.Leave(ctx, c.Member.ID)
		if err != nil {
			return response{}, err
		}
		if g.Name == "" {
			return reply("👋 Vous avez quitté votre guilde."), nil
		}
		return reply(fmt.Sprintf("👋 Vous avez quitté la guilde **%s**.", g.Name)), nil
	case "dissolve":
		g, err := d.svc.Guilds.Dissolve(ctx, c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("💥 La guilde **%s** a été dissoute.", g.Name)), nil
	}
	return response{}, fmt.Errorf("%w: guilde %q", errUnsupportedInteraction, c.Sub)
}

func guildCard(g *domain.Guild) domain.Message {
	members := make([]string, 0, len(g.Members))
	for _, id := range g.Members {
		members = append(members, "<@"+id+">")
	}
	color := domain.ColorBlurple
	if _, c, err := service.ParseColor(g.Color); err == nil {
		color = c
	}
	return domain.Message{
		Title: "🛡️ " + g.Name,
		Color: color,
		Fields: []domain.MessageField{
			{Name: "Chef", Value: "<@" + g.OwnerID + ">", Inline: true},
			{Name: "XP de la semaine", Value: fmt.Sprintf("%d", g.WeeklyXP), Inline: true},
			{Name: fmt.Sprintf("Membres (%d)", len(g.Members)), Value: strings.Join(members, "\n")},
		},
	}
}

func (d *Dispatcher) eventCommand(ctx context.Context, c SlashCommand) (response, error) {
	if c.Sub == "status" {
		active := d.svc.Events.Active()
		if len(active) == 0 {
			return reply("Aucun événement en cours."), nil
		}
		msg := domain.Message{Title: "📅 Événements en cours", Color: domain.ColorPurple}
		for _, e := range active {
			msg.Fields = append(msg.Fields, domain.MessageField{Name: e.Name, Value: "Se termine " + timestamp(e.EndsAt)})
		}
		return response{msg: msg, ephemeral: true}, nil
	}

	if err := d.requireAdmin(c.Member); err != nil {
		return response{}, err
	}
	switch c.Sub {
	case "start":
		dur, err := service.ParseDuration(c.String("duree"))
		if err != nil {
			return response{}, err
		}
		e, err := d.svc.Events.Start(ctx, c.String("evenement"), dur, c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("✅ L'événement **%s** est lancé, fin %s.", e.Name, timestamp(e.EndsAt))), nil
	case "stop":
		e, err := d.svc.Events.Stop(ctx, c.String("evenement"), c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("🛑 L'événement **%s** est arrêté.", e.Name)), nil
	}
	return response{}, fmt.Errorf("%w: event %q", errUnsupportedInteraction, c.Sub)
}

func lotteryReply(res *service.LotteryResult) response {
	if res.Drawn() {
		return reply(fmt.Sprintf("🎟️ Ticket acheté ! Le tirage a eu lieu : <@%s> remporte %s crédits.",
			res.Winner.UserID, res.Prize.StringFixed(2)))
	}
	return reply(fmt.Sprintf("🎟️ Ticket acheté pour la manche %d (%d/%d participants).", res.Round, res.Tickets, res.Needed))
}

func (d *Dispatcher) shopMenu() response {
	menu := &selectMenu{ID: domain.ActionID(domain.ActionShopBuy, ""), Placeholder: "Choisissez un article"}
	for _, it := range d.svc.Shop.Items() {
		menu.Options = append(menu.Options, selectOption{
			Label:       fmt.Sprintf("%s (%s crédits)", it.Name, decimal.NewFromFloat(it.Cost).StringFixed(2)),
			Value:       it.ID,
			Description: it.Description,
			Emoji:       it.Icon,
		})
	}
	return response{
		msg: domain.Message{
			Title:       "🛒 Boutique de crédits",
			Description: "Dépensez votre crédit boutique en boosters, XP ou tickets de loterie.",
			Color:       domain.ColorGold,
		},
		ephemeral:  true,
		selectMenu: menu,
	}
}

func (d *Dispatcher) ticketMenu() response {
	menu := &selectMenu{ID: domain.ActionID(domain.ActionTicketType, ""), Placeholder: "Type de demande"}
	for _, t := range d.svc.Tickets.Types() {
		menu.Options = append(menu.Options, selectOption{Label: t.Label, Value: t.Label, Description: t.Description})
	}
	return response{msg: service.Text("Quel est l'objet de votre ticket ?"), ephemeral: true, selectMenu: menu}
}

func cashoutModal() *modal {
	return &modal{
		ID:    domain.ActionID(domain.ActionCashoutSubmit, ""),
		Title: "Demande de retrait",
		Inputs: []textInput{
			{ID: fieldAmount, Label: "Montant en crédits", Placeholder: "10.00"},
			{ID: fieldPaypal, Label: "Adresse PayPal", Placeholder: "vous@exemple.com"},
		},
	}
}

func leaderboardValue(category string, u *domain.User) string {
	switch category {
	case "weekly_xp":
		return fmt.Sprintf("%d XP", u.WeeklyXP)
	case "affiliate_earnings":
		return u.AffiliateEarnings.StringFixed(2) + " €"
	case "referral_count":
		return fmt.Sprintf("%d filleuls", u.ReferralCount)
	}
	return fmt.Sprintf("%d XP (niveau %d)", u.XP, u.Level)
}

func (d *Dispatcher) leaderboard(ctx context.Context, category string) (response, error) {
	if category == "" {
		category = "xp"
	}
	top, err := d.svc.Leaderboard.Top(ctx, category, leaderboardSize)
	if err != nil {
		return response{}, err
	}
	lines := make([]string, 0, len(top))
	for i, u := range top {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> · %s", i+1, u.ID, leaderboardValue(category, u)))
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "Personne pour l'instant."
	}
	return response{msg: domain.Message{
		Title:       "🏆 Classement · " + category,
		Description: desc,
		Color:       domain.ColorGold,
	}}, nil
}

func (d *Dispatcher) giveawayCommand(ctx context.Context, c SlashCommand) (response, error) {
	if err := d.requireStaff(c.Member); err != nil {
		return response{}, err
	}
	switch c.Sub {
	case "start":
		dur, err := service.ParseDuration(c.String("duree"))
		if err != nil {
			return response{}, err
		}
		g, err := d.svc.Giveaways.Start(ctx, c.Member.ID, c.String("salon"), dur, int(c.Int("gagnants")), c.String("prix"))
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("🎉 Giveaway lancé dans <#%s>, fin %s.", g.ChannelID, timestamp(g.EndTime))), nil
	case "reroll":
		w, err := d.svc.Giveaways.Reroll(ctx, service.MessageRef{ChannelID: c.ChannelID, MessageID: c.String("message")})
		if err != nil {
			return response{}, err
		}
		return reply("🎉 Nouveau gagnant : " + w.Mention()), nil
	}
	return response{}, fmt.Errorf("%w: giveaway %q", errUnsupportedInteraction, c.Sub)
}

func (d *Dispatcher) profile(ctx context.Context, m service.Member) (response, error) {
	p, err := d.svc.Leaderboard.Profile(ctx, m.ID)
	if err != nil {
		return response{}, err
	}
	u := p.User
	name := m.DisplayName
	if name == "" {
		name = u.DisplayName
	}
	msg := domain.Message{
		Title: "👤 Profil de " + name,
		Color: domain.ColorBlue,
		Fields: []domain.MessageField{
			{Name: "Niveau", Value: fmt.Sprintf("%d", u.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d / %d", u.XP, p.NextLevelXP), Inline: true},
			{Name: "XP de la semaine", Value: fmt.Sprintf("%d", u.WeeklyXP), Inline: true},
			{Name: "Crédit boutique", Value: u.StoreCredit.StringFixed(2), Inline: true},
			{Name: "Gains d'affiliation", Value: u.AffiliateEarnings.StringFixed(2) + " €", Inline: true},
			{Name: "Commission", Value: fmt.Sprintf("%.0f%%", p.CommissionRate*100), Inline: true},
			{Name: "Boost d'XP", Value: fmt.Sprintf("x%.2f", p.XPBoost), Inline: true},
			{Name: "Filleuls", Value: fmt.Sprintf("%d", u.ReferralCount), Inline: true},
			{Name: "Succès", Value: fmt.Sprintf("%d", len(u.Achievements)), Inline: true},
		},
	}
	if p.VIPActive {
		msg.Footer = "💎 VIP Premium actif"
	}
	if p.Guild != nil {
		msg.Fields = append(msg.Fields, domain.MessageField{Name: "Guilde", Value: p.Guild.Name, Inline: true})
	}
	return response{msg: msg, ephemeral: true}, nil
}

func missionLine(m *domain.Mission) string {
	if m == nil {
		return "Aucune mission assignée."
	}
	state := fmt.Sprintf("%d/%d", min(m.Progress, m.Target), m.Target)
	if m.Completed {
		state = "✅ terminée"
	}
	return fmt.Sprintf("%s\nProgression : %s · Récompense : %d XP", m.Description, state, m.RewardXP)
}

func (d *Dispatcher) missions(ctx context.Context, m service.Member) (response, error) {
	p, err := d.svc.Leaderboard.Profile(ctx, m.ID)
	if err != nil {
		return response{}, err
	}
	label := "Activer les rappels en MP"
	if p.User.MissionsOptIn {
		label = "Désactiver les rappels en MP"
	}
	return response{
		msg: domain.Message{
			Title: "🎯 Vos missions",
			Color: domain.ColorGreen,
			Fields: []domain.MessageField{
				{Name: "Quotidienne", Value: missionLine(p.User.DailyMission)},
				{Name: "Hebdomadaire", Value: missionLine(p.User.WeeklyMission)},
			},
			Buttons: []domain.Button{{
				Label: label, ActionID: domain.ActionID(domain.ActionMissionToggle, ""), Style: domain.ButtonSecondary,
			}},
		},
		ephemeral: true,
	}, nil
}

func (d *Dispatcher) adminCommand(ctx context.Context, c SlashCommand) (response, error) {
	if err := d.requireAdmin(c.Member); err != nil {
		return response{}, err
	}
	target, hasTarget := c.User("membre")
	if !hasTarget && c.Sub != "token" {
		return response{}, service.ErrMemberNotFound
	}
	switch c.Sub {
	case "grant-xp":
		reason := c.String("raison")
		if reason == "" {
			reason = "Attribution manuelle"
		}
		res, err := d.svc.XP.AdminGrant(ctx, target.ID, c.Int("montant"), reason, c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("✅ %d XP accordés à %s (niveau %d).", res.Granted, target.Mention(), res.NewLevel)), nil
	case "xp-gate":
		gated, _ := c.Bool("bloque")
		if err := d.svc.XP.SetXPGate(ctx, target.ID, gated, c.Member.ID); err != nil {
			return response{}, err
		}
		if gated {
			return reply("🔒 Gain d'XP bloqué pour " + target.Mention() + "."), nil
		}
		return reply("🔓 Gain d'XP rétabli pour " + target.Mention() + "."), nil
	case "purchase":
		credit := decimal.Zero
		if raw := c.String("credit"); raw != "" {
			v, err := service.ParseCredits(raw)
			if err != nil {
				return response{}, err
			}
			credit = v
		}
		res, err := d.svc.Economy.RecordPurchase(ctx, service.Purchase{
			UserID:      target.ID,
			DisplayName: target.DisplayName,
			ProductID:   c.String("produit"),
			OptionID:    c.String("option"),
			CreditUsed:  credit,
			RecordedBy:  c.Member.ID,
		})
		if err != nil {
			return response{}, err
		}
		text := fmt.Sprintf("✅ Achat enregistré pour %s : %s €, +%d XP.", target.Mention(), res.Price.StringFixed(2), res.XPGranted)
		if res.ReferrerID != "" {
			text += fmt.Sprintf(" Commission de %s € versée à <@%s>.", res.Commission.StringFixed(2), res.ReferrerID)
		}
		return reply(text), nil
	case "warn":
		n, err := d.svc.Moderation.Warn(ctx, target.ID, c.Member.ID, c.String("raison"), "")
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("⚠️ %s a été averti (%d avertissement(s)).", target.Mention(), n)), nil
	case "token":
		if d.tokens == nil {
			return response{}, service.ErrFeatureDisabled
		}
		tok, exp, err := d.tokens.Issue(c.Member.ID)
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("🔑 Jeton valable jusqu'au %s :\n```%s```", timestamp(exp), tok)), nil
	}
	return response{}, fmt.Errorf("%w: admin %q", errUnsupportedInteraction, c.Sub)
}

func (d *Dispatcher) button(ctx context.Context, b ButtonPress) (response, error) {
	switch b.Action {
	case domain.ActionCashoutApprove, domain.ActionCashoutDeny:
		if err := d.requireStaff(b.Member); err != nil {
			return response{}, err
		}
		staff := service.Staff{ID: b.Member.ID, DisplayName: b.Member.DisplayName}
		if b.Action == domain.ActionCashoutApprove {
			if _, err := d.svc.Economy.ApproveCashout(ctx, b.MessageID, staff); err != nil {
				return response{}, err
			}
			return reply("✅ Retrait approuvé."), nil
		}
		if _, err := d.svc.Economy.DenyCashout(ctx, b.MessageID, staff); err != nil {
			return response{}, err
		}
		return reply("❌ Retrait refusé, crédit remboursé."), nil
	case domain.ActionCashoutOpen:
		return response{modal: cashoutModal()}, nil
	case domain.ActionGuildAccept:
		g, err := d.svc.Guilds.Accept(ctx, b.Member.ID, b.Arg)
		if err != nil {
			return response{}, err
		}
		return response{msg: service.Text(fmt.Sprintf("✅ Bienvenue dans la guilde **%s** !", g.Name)), update: true}, nil
	case domain.ActionGuildDecline:
		if err := d.svc.Guilds.Decline(ctx, b.Member.ID, b.Arg); err != nil {
			return response{}, err
		}
		return response{msg: service.Text("Invitation refusée."), update: true}, nil
	case domain.ActionVerify:
		if err := d.svc.Referrals.Verify(ctx, b.Member); err != nil {
			return response{}, err
		}
		return reply("✅ Vous êtes vérifié, bienvenue !"), nil
	case domain.ActionMissionToggle:
		on, err := d.svc.Missions.ToggleOptIn(ctx, b.Member.ID)
		if err != nil {
			return response{}, err
		}
		if on {
			return reply("🔔 Rappels de missions activés."), nil
		}
		return reply("🔕 Rappels de missions désactivés."), nil
	case domain.ActionTicketOpen:
		return d.ticketMenu(), nil
	case domain.ActionTicketClose:
		member, channel := b.Member, b.ChannelID
		return response{
			msg: service.Text("🔒 Fermeture du ticket..."),
			then: func(ctx context.Context) error {
				return d.svc.Tickets.Close(ctx, channel, member)
			},
		}, nil
	}
	return response{}, fmt.Errorf("%w: button %q", errUnsupportedInteraction, b.Action)
}

func (d *Dispatcher) selection(ctx context.Context, s SelectChoice) (response, error) {
	if len(s.Values) == 0 {
		return response{}, fmt.Errorf("%w: empty selection", errUnsupportedInteraction)
	}
	switch s.Action {
	case domain.ActionShopBuy:
		res, err := d.svc.Shop.Buy(ctx, s.Member.ID, s.Member.DisplayName, s.Values[0])
		if err != nil {
			return response{}, err
		}
		switch {
		case res.NeedsAmount:
			return response{modal: &modal{
				ID:     domain.ActionID(domain.ActionXPPurchase, ""),
				Title:  "Acheter de l'XP",
				Inputs: []textInput{{ID: fieldAmount, Label: "Crédits à convertir", Placeholder: "2.50"}},
			}}, nil
		case res.Lottery != nil:
			return lotteryReply(res.Lottery), nil
		case res.Booster != nil:
			return reply(fmt.Sprintf("✅ **%s** activé jusqu'au %s.", res.Item.Name, timestamp(res.Booster.ExpiresAt))), nil
		}
		return reply(fmt.Sprintf("✅ **%s** acheté.", res.Item.Name)), nil
	case domain.ActionTicketType:
		t, err := d.svc.Tickets.Open(ctx, s.Member, s.Values[0], "")
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("🎫 Votre ticket est ouvert : <#%s>", t.ChannelID)), nil
	}
	return response{}, fmt.Errorf("%w: select %q", errUnsupportedInteraction, s.Action)
}

func (d *Dispatcher) modalSubmit(ctx context.Context, m ModalSubmit) (response, error) {
	switch m.Action {
	case domain.ActionCashoutSubmit:
		p, err := d.svc.Economy.SubmitCashout(ctx, service.CashoutRequest{
			UserID:      m.Member.ID,
			DisplayName: m.Member.DisplayName,
			Amount:      m.Fields[fieldAmount],
			PaypalEmail: m.Fields[fieldPaypal],
		})
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("✅ Demande de retrait envoyée : %s crédits, soit %s € après validation.",
			p.CreditDeducted.StringFixed(2), p.PayoutEUR.StringFixed(2))), nil
	case domain.ActionXPPurchase:
		xp, level, err := d.svc.Shop.BuyXP(ctx, m.Member.ID, m.Fields[fieldAmount])
		if err != nil {
			return response{}, err
		}
		return reply(fmt.Sprintf("✅ +%d XP ! Vous êtes niveau %d.", xp, level)), nil
	case domain.ActionChallenge:
		if err := d.svc.Referrals.SubmitChallenge(ctx, m.Member, m.Arg, m.Fields[fieldProof]); err != nil {
			return response{}, err
		}
		return reply("✅ Votre preuve a été envoyée à l'équipe."), nil
	}
	return response{}, fmt.Errorf("%w: modal %q", errUnsupportedInteraction, m.Action)
}

// timestamp renders t as a relative platform timestamp.
func timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
