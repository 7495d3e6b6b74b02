package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"

	"gopkg.in/yaml.v3"
)

// Shop item effect kinds.
const (
	EffectXPBooster         = "xp_booster"
	EffectCommissionBooster = "commission_booster"
	EffectXPPurchase        = "xp_purchase"
	EffectLotteryTicket     = "lottery_ticket"
)

type ShopEffect struct {
	Kind       string        `yaml:"kind" validate:"oneof=xp_booster commission_booster xp_purchase lottery_ticket"`
	Slot       string        `yaml:"slot"`
	Multiplier float64       `yaml:"multiplier" validate:"gte=0"`
	Bonus      float64       `yaml:"bonus" validate:"gte=0"`
	Duration   time.Duration `yaml:"duration" validate:"gte=0"`
}

type ShopItem struct {
	ID          string     `yaml:"id" validate:"required"`
	Name        string     `yaml:"name" validate:"required"`
	Description string     `yaml:"description"`
	Cost        float64    `yaml:"cost" validate:"gte=0"`
	Icon        string     `yaml:"icon"`
	Effect      ShopEffect `yaml:"effect"`
}

type AchievementTrigger struct {
	Type  string  `yaml:"type" validate:"required"`
	Value float64 `yaml:"value" validate:"gt=0"`
}

type Achievement struct {
	ID          string             `yaml:"id" validate:"required"`
	Name        string             `yaml:"name" validate:"required"`
	Description string             `yaml:"description"`
	Trigger     AchievementTrigger `yaml:"trigger"`
	RewardXP    int64              `yaml:"reward_xp" validate:"gte=0"`
}

// Field returns the ledger counter the trigger compares against.
func (a Achievement) Field() domain.Field {
	return domain.Field(a.Trigger.Type)
}

type MissionTemplate struct {
	ID            string             `yaml:"id" validate:"required"`
	Type          domain.MissionType `yaml:"type" validate:"oneof=daily weekly"`
	Description   string             `yaml:"description" validate:"required"`
	TargetRange   [2]int             `yaml:"target_range"`
	RewardXPRange [2]int64           `yaml:"reward_xp_range"`
	Weight        int                `yaml:"weight" validate:"gte=0"`
}

type ProductOption struct {
	ID           string  `yaml:"id" validate:"required"`
	Name         string  `yaml:"name"`
	Price        float64 `yaml:"price" validate:"gte=0"`
	PurchaseCost float64 `yaml:"purchase_cost" validate:"gte=0"`
}

// Product margin types.
const (
	MarginTotal = "total"
	MarginNet   = "net"
)

type Product struct {
	ID               string          `yaml:"id" validate:"required"`
	Name             string          `yaml:"name" validate:"required"`
	ShortDescription string          `yaml:"short_description"`
	Price            float64         `yaml:"price" validate:"gte=0"`
	PurchaseCost     float64         `yaml:"purchase_cost" validate:"gte=0"`
	MarginType       string          `yaml:"margin_type" validate:"omitempty,oneof=total net"`
	Type             string          `yaml:"type"`
	Options          []ProductOption `yaml:"options" validate:"dive"`
}

// IsSubscription reports whether buying the product grants VIP.
func (p Product) IsSubscription() bool {
	return p.Type == "subscription"
}

// Option looks up an option by id.
func (p Product) Option(id string) (ProductOption, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ProductOption{}, false
}

// Catalog holds the static documents loaded once at startup.
type Catalog struct {
	ShopItems        []ShopItem        `validate:"dive"`
	Achievements     []Achievement     `validate:"dive"`
	MissionTemplates []MissionTemplate `validate:"dive"`
	Products         []Product         `validate:"dive"`
	KnowledgeBase    map[string]string
}

func (c *Catalog) ShopItem(id string) (ShopItem, bool) {
	for _, it := range c.ShopItems {
		if it.ID == id {
			return it, true
		}
	}
	return ShopItem{}, false
}

func (c *Catalog) Product(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Templates returns the mission pool for one rotation period.
func (c *Catalog) Templates(t domain.MissionType) []MissionTemplate {
	var out []MissionTemplate
	for _, tpl := range c.MissionTemplates {
		if tpl.Type == t {
			out = append(out, tpl)
		}
	}
	return out
}

// Catalog document names, looked up as <name>.yaml, <name>.yml or <name>.json.
const (
	docShopItems     = "credit_shop_items"
	docAchievements  = "achievements"
	docMissions      = "missions"
	docProducts      = "products"
	docKnowledgeBase = "knowledge_base"
)

// LoadCatalog reads every static document from dir. Missing documents yield an
// empty section; malformed ones are an error.
func LoadCatalog(dir string) (*Catalog, error) {
	c := &Catalog{KnowledgeBase: map[string]string{}}
	docs := []struct {
		name string
		out  any
	}{
		{docShopItems, &c.ShopItems},
		{docAchievements, &c.Achievements},
		{docMissions, &c.MissionTemplates},
		{docProducts, &c.Products},
		{docKnowledgeBase, &c.KnowledgeBase},
	}
	for _, d := range docs {
		if err := readDocument(dir, d.name, d.out); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func readDocument(dir, name string, out any) error {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, name+ext)
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// Validate checks tags and cross references between documents.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	var errs []error
	ids := map[string]bool{}
	for _, a := range c.Achievements {
		if ids[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate achievement %q", a.ID))
		}
		ids[a.ID] = true
		if _, err := domain.ParseField(a.Trigger.Type); err != nil {
			errs = append(errs, fmt.Errorf("achievement %q: %w", a.ID, err))
		}
	}
	for _, t := range c.MissionTemplates {
		if t.TargetRange[0] <= 0 || t.TargetRange[0] > t.TargetRange[1] {
			errs = append(errs, fmt.Errorf("mission %q: bad target_range %v", t.ID, t.TargetRange))
		}
		if t.RewardXPRange[0] < 0 || t.RewardXPRange[0] > t.RewardXPRange[1] {
			errs = append(errs, fmt.Errorf("mission %q: bad reward_xp_range %v", t.ID, t.RewardXPRange))
		}
		if !strings.Contains(t.Description, "{target}") {
			errs = append(errs, fmt.Errorf("mission %q: description lacks {target}", t.ID))
		}
	}
	for _, it := range c.ShopItems {
		switch it.Effect.Kind {
		case EffectXPBooster:
			if it.Effect.Multiplier <= 1 || it.Effect.Duration <= 0 || it.Effect.Slot == "" {
				errs = append(errs, fmt.Errorf("shop item %q: xp booster needs slot, multiplier > 1 and duration", it.ID))
			}
		case EffectCommissionBooster:
			if it.Effect.Bonus <= 0 || it.Effect.Duration <= 0 || it.Effect.Slot == "" {
				errs = append(errs, fmt.Errorf("shop item %q: commission booster needs slot, bonus and duration", it.ID))
			}
		}
	}
	return errors.Join(errs...)
}
