package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ledger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type posted struct {
	Channel string
	Ref     MessageRef
	Msg     domain.Message
}

// fakePlatform records everything the services send and lets tests script
// members, reactions, invites and failures.
type fakePlatform struct {
	mu  sync.Mutex
	seq int

	posts    []posted
	dms      map[string][]domain.Message
	edits    map[string]domain.Message
	deleted  []MessageRef
	reacted  []string
	members  map[string]Member
	roles    map[string][]string
	reaction map[string][]Member
	invites  []Invite

	createdRoles    []string
	deletedRoles    []string
	channels        map[string]ChannelSpec
	deletedChannels []string

	failChannels      map[string]error
	failCreateChannel error
	failDM            bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		dms:          map[string][]domain.Message{},
		edits:        map[string]domain.Message{},
		members:      map[string]Member{},
		roles:        map[string][]string{},
		reaction:     map[string][]Member{},
		channels:     map[string]ChannelSpec{},
		failChannels: map[string]error{},
	}
}

func (p *fakePlatform) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", prefix, p.seq)
}

func (p *fakePlatform) SendChannel(_ context.Context, channel string, msg domain.Message) (MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failChannels[channel]; err != nil {
		return MessageRef{}, err
	}
	ref := MessageRef{ChannelID: channel, MessageID: p.nextID("msg")}
	p.posts = append(p.posts, posted{Channel: channel, Ref: ref, Msg: msg})
	return ref, nil
}

func (p *fakePlatform) SendDM(_ context.Context, userID string, msg domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDM {
		return ErrForbidden
	}
	p.dms[userID] = append(p.dms[userID], msg)
	return nil
}

func (p *fakePlatform) EditMessage(_ context.Context, ref MessageRef, msg domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits[ref.MessageID] = msg
	return nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, ref MessageRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, ref)
	return nil
}

func (p *fakePlatform) AddReaction(_ context.Context, ref MessageRef, emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reacted = append(p.reacted, ref.MessageID+" "+emoji)
	return nil
}

func (p *fakePlatform) ReactionUsers(_ context.Context, ref MessageRef, _ string) ([]Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.reaction[ref.MessageID]), nil
}

func (p *fakePlatform) Member(_ context.Context, userID string) (Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[userID]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	m.Roles = slices.Clone(p.roles[userID])
	return m, nil
}

func (p *fakePlatform) AddRole(_ context.Context, userID, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.roles[userID], role) {
		p.roles[userID] = append(p.roles[userID], role)
	}
	return nil
}

func (p *fakePlatform) RemoveRole(_ context.Context, userID, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[userID] = slices.DeleteFunc(p.roles[userID], func(r string) bool { return r == role })
	return nil
}

func (p *fakePlatform) RoleMembers(_ context.Context, role string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for id, roles := range p.roles {
		if slices.Contains(roles, role) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (p *fakePlatform) CreateRole(_ context.Context, name string, _ int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID("role")
	p.createdRoles = append(p.createdRoles, id)
	return id, nil
}

func (p *fakePlatform) DeleteRole(_ context.Context, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletedRoles = append(p.deletedRoles, roleID)
	return nil
}

func (p *fakePlatform) CreateChannel(_ context.Context, spec ChannelSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreateChannel != nil {
		return "", p.failCreateChannel
	}
	id := p.nextID("chan")
	p.channels[id] = spec
	return id, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletedChannels = append(p.deletedChannels, channelID)
	delete(p.channels, channelID)
	return nil
}

func (p *fakePlatform) Invites(context.Context) ([]Invite, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.invites), nil
}

func (p *fakePlatform) postsTo(channel string) []posted {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []posted
	for _, m := range p.posts {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakePlatform) dmsTo(userID string) []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.dms[userID])
}

func (p *fakePlatform) addMember(m Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[m.ID] = m
	if len(m.Roles) > 0 {
		p.roles[m.ID] = slices.Clone(m.Roles)
	}
}

// seqRand returns the scripted values in order, modulo n, then zeros.
type seqRand struct {
	mu     sync.Mutex
	values []int
}

func (r *seqRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

type fakeAI struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (f *fakeAI) Generate(_ context.Context, prompt string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

// failingStore delegates reads and fails every transaction with err.
type failingStore struct {
	store.Store
	err error
}

func (s failingStore) RunTx(context.Context, func(context.Context, store.Tx) error) error {
	return s.err
}

type testEnv struct {
	ctx      context.Context
	t        *testing.T
	now      time.Time
	store    *store.Memory
	platform *fakePlatform
	rules    *config.Rules
	catalog  *config.Catalog
	rand     *seqRand
	ai       *fakeAI
	deps     Deps
	svc      *Services
}

func testRules() *config.Rules {
	r := config.DefaultRules()
	r.AdminUserIDs = []string{"admin"}
	r.Channels.LevelUp = "level-up"
	r.Channels.WeeklyLeaderboard = "classement"
	r.Channels.GuildLeaderboard = "classement-guildes"
	r.Channels.Lottery = "loterie"
	r.Channels.CashoutRequests = "retraits"
	r.Channels.PublicTransactions = "transactions"
	r.Channels.ModAlerts = "mod-alerts"
	r.Channels.PromoFlash = "promo-flash"
	r.Roles.Unverified = "Non vérifié"
	r.Roles.Verified = "Vérifié"
	r.Roles.VIPPremium = "VIP"
	r.Roles.Staff = []string{"Staff"}
	r.Roles.LeaderboardTop = []string{"Top 1", "Top 2", "Top 3"}
	r.Guilds.Enabled = true
	r.Lottery.Enabled = true
	r.Missions.Enabled = true
	r.Moderation.Enabled = true
	r.AI.ModerationPrompt = "Analyse: {user_message} in #{channel_name}"
	r.Affiliate.CommissionTiers = []config.CommissionTier{{Level: 1, Rate: 0.10}, {Level: 10, Rate: 0.20}}
	r.Affiliate.LoyaltyBonusRate = 0.02
	r.VIP.XPBoostTiers = []config.XPBoostTier{{ConsecutiveMonths: 1, Boost: 0.25}, {ConsecutiveMonths: 3, Boost: 0.5}}
	r.VIP.CommissionBonusTiers = []config.CommissionBonusTier{{ConsecutiveMonths: 1, Bonus: 0.05}}
	r.Cashout.MinimumLevel = 5
	r.Cashout.MinimumAccountAgeDays = 7
	r.Cashout.DefaultThreshold = 10
	r.Tickets.Types = []config.TicketType{{Label: "Support"}, {Label: "Partenariat"}}
	return &r
}

func testCatalog() *config.Catalog {
	return &config.Catalog{
		ShopItems: []config.ShopItem{
			{ID: "xp_boost_24h", Name: "Boost XP 24h", Cost: 2, Effect: config.ShopEffect{
				Kind: config.EffectXPBooster, Slot: "xp", Multiplier: 1.5, Duration: 24 * time.Hour}},
			{ID: "commission_boost", Name: "Boost Commission", Cost: 3, Effect: config.ShopEffect{
				Kind: config.EffectCommissionBooster, Slot: "commission", Bonus: 0.05, Duration: 48 * time.Hour}},
			{ID: "xp_pack", Name: "Acheter de l'XP", Effect: config.ShopEffect{Kind: config.EffectXPPurchase}},
			{ID: "ticket", Name: "Ticket de loterie", Cost: 0.25, Effect: config.ShopEffect{Kind: config.EffectLotteryTicket}},
		},
		Achievements: []config.Achievement{
			{ID: "first_purchase", Name: "Premier achat", Trigger: config.AchievementTrigger{Type: "purchase_count", Value: 1}, RewardXP: 50},
			{ID: "xp_1000", Name: "Mille XP", Trigger: config.AchievementTrigger{Type: "xp", Value: 1000}},
		},
		MissionTemplates: []config.MissionTemplate{
			{ID: domain.MissionActionSendMessage, Type: domain.MissionDaily, Description: "Envoyer {target} messages",
				TargetRange: [2]int{5, 5}, RewardXPRange: [2]int64{40, 40}, Weight: 1},
		},
		Products: []config.Product{
			{ID: "netflix", Name: "Netflix", Price: 10},
			{ID: "spotify", Name: "Spotify", Price: 8, PurchaseCost: 5, MarginType: config.MarginNet},
			{ID: "vip", Name: "VIP Premium", Price: 5, Type: "subscription"},
		},
		KnowledgeBase: map[string]string{},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ctx:      context.Background(),
		t:        t,
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		store:    store.NewMemory(),
		platform: newFakePlatform(),
		rules:    testRules(),
		catalog:  testCatalog(),
		rand:     &seqRand{},
		ai:       &fakeAI{},
	}
	clock := func() time.Time { return env.now }
	l, err := ledger.New(env.store, ledger.Options{
		MaxLogSize:    env.rules.TransactionLog.MaxUserLogSize,
		MissionsOptIn: true,
		NodeID:        1,
		Now:           clock,
	})
	require.NoError(t, err)
	env.deps = Deps{
		Store:    env.store,
		Ledger:   l,
		Rules:    env.rules,
		Catalog:  env.catalog,
		Platform: env.platform,
		AI:       env.ai,
		Rand:     env.rand,
		Now:      clock,
	}
	env.svc = New(env.deps)
	return env
}

// seed stores u as-is.
func (e *testEnv) seed(u *domain.User) *domain.User {
	e.t.Helper()
	if u.Level == 0 {
		u.Level = 1
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = e.now.AddDate(0, -1, 0)
	}
	require.NoError(e.t, e.store.RunTx(e.ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutUser(ctx, u)
	}))
	return u
}

func (e *testEnv) user(id string) *domain.User {
	e.t.Helper()
	u, err := e.store.User(e.ctx, id)
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) credit(id string) decimal.Decimal {
	return e.user(id).StoreCredit
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
