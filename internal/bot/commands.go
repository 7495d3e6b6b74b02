package bot

import (
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/bwmarrin/discordgo"
)

var (
	staffOnly   = int64(discordgo.PermissionManageMessages)
	minOne      = 1.0
	maxWinners  = 25.0
	leaderboard = service.LeaderboardCategories()
)

func choices(values ...string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(values))
	for _, v := range values {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
	}
	return out
}

func eventChoices(rules *config.Rules) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(rules.Events.Available))
	for _, e := range rules.Events.Available {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: e.Name, Value: e.ID})
	}
	return out
}

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

func opt(t discordgo.ApplicationCommandOptionType, name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: t, Name: name, Description: desc, Required: required}
}

// Commands returns the slash commands registered on the server.
func Commands(rules *config.Rules) []*discordgo.ApplicationCommand {
	event := opt(discordgo.ApplicationCommandOptionString, "evenement", "L'événement", true)
	event.Choices = eventChoices(rules)
	category := opt(discordgo.ApplicationCommandOptionString, "categorie", "Le classement à afficher", false)
	category.Choices = choices(leaderboard...)
	winners := opt(discordgo.ApplicationCommandOptionInteger, "gagnants", "Nombre de gagnants", true)
	winners.MinValue = &minOne
	winners.MaxValue = maxWinners
	xpAmount := opt(discordgo.ApplicationCommandOptionInteger, "montant", "XP à accorder", true)
	xpAmount.MinValue = &minOne

	return []*discordgo.ApplicationCommand{
		{
			Name:        "guilde",
			Description: "Gérer votre guilde",
			Options: []*discordgo.ApplicationCommandOption{
				sub("create", "Créer une guilde",
					opt(discordgo.ApplicationCommandOptionString, "nom", "Nom de la guilde", true),
					opt(discordgo.ApplicationCommandOptionString, "couleur", "Couleur hexadécimale, ex. #FF5733", false)),
				sub("info", "Voir votre guilde"),
				sub("invite", "Inviter un membre",
					opt(discordgo.ApplicationCommandOptionUser, "membre", "Le membre à inviter", true)),
				sub("leave", "Quitter votre guilde"),
				sub("dissolve", "Dissoudre votre guilde"),
			},
		},
		{
			Name:                     "event",
			Description:              "Gérer les événements",
			DefaultMemberPermissions: &staffOnly,
			Options: []*discordgo.ApplicationCommandOption{
				sub("start", "Lancer un événement", event,
					opt(discordgo.ApplicationCommandOptionString, "duree", "Durée, ex. 2h ou 1d", true)),
				sub("stop", "Arrêter un événement", event),
				sub("status", "Événements en cours"),
			},
		},
		{
			Name:        "loterie",
			Description: "Acheter un ticket de loterie",
		},
		{
			Name:        "boutique",
			Description: "Dépenser vos crédits",
		},
		{
			Name:        "classement",
			Description: "Voir le classement",
			Options:     []*discordgo.ApplicationCommandOption{category},
		},
		{
			Name:                     "giveaway",
			Description:              "Gérer les giveaways",
			DefaultMemberPermissions: &staffOnly,
			Options: []*discordgo.ApplicationCommandOption{
				sub("start", "Lancer un giveaway",
					opt(discordgo.ApplicationCommandOptionString, "duree", "Durée, ex. 1d", true),
					winners,
					opt(discordgo.ApplicationCommandOptionString, "prix", "Le lot", true),
					opt(discordgo.ApplicationCommandOptionChannel, "salon", "Salon du giveaway", false)),
				sub("reroll", "Tirer un nouveau gagnant",
					opt(discordgo.ApplicationCommandOptionString, "message", "Id du message du giveaway", true)),
			},
		},
		{
			Name:        "retrait",
			Description: "Demander un retrait de vos crédits",
		},
		{
			Name:        "profil",
			Description: "Voir un profil",
			Options: []*discordgo.ApplicationCommandOption{
				opt(discordgo.ApplicationCommandOptionUser, "membre", "Le membre", false),
			},
		},
		{
			Name:        "missions",
			Description: "Voir vos missions",
		},
		{
			Name:        "ticket",
			Description: "Ouvrir un ticket",
		},
		{
			Name:        "defi",
			Description: "Soumettre une preuve de défi",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Le type de défi",
					Required:    true,
					Choices:     choices("Video", "Avis", "Partage"),
				},
			},
		},
		{
			Name:                     "promo",
			Description:              "Publier une promo flash",
			DefaultMemberPermissions: &staffOnly,
			Options: []*discordgo.ApplicationCommandOption{
				opt(discordgo.ApplicationCommandOptionString, "produit", "Id du produit", true),
			},
		},
		{
			Name:                     "admin",
			Description:              "Commandes d'administration",
			DefaultMemberPermissions: &staffOnly,
			Options: []*discordgo.ApplicationCommandOption{
				sub("grant-xp", "Accorder de l'XP",
					opt(discordgo.ApplicationCommandOptionUser, "membre", "Le membre", true),
					xpAmount,
					opt(discordgo.ApplicationCommandOptionString, "raison", "Raison", false)),
				sub("xp-gate", "Bloquer ou débloquer le gain d'XP",
					opt(discordgo.ApplicationCommandOptionUser, "membre", "Le membre", true),
					opt(discordgo.ApplicationCommandOptionBoolean, "bloque", "Bloquer l'XP", true)),
				sub("purchase", "Enregistrer un achat",
					opt(discordgo.ApplicationCommandOptionUser, "membre", "L'acheteur", true),
					opt(discordgo.ApplicationCommandOptionString, "produit", "Id du produit", true),
					opt(discordgo.ApplicationCommandOptionString, "option", "Id de l'option", false),
					opt(discordgo.ApplicationCommandOptionString, "credit", "Crédit utilisé", false)),
				sub("warn", "Avertir un membre",
					opt(discordgo.ApplicationCommandOptionUser, "membre", "Le membre", true),
					opt(discordgo.ApplicationCommandOptionString, "raison", "Raison", true)),
				sub("token", "Obtenir un jeton pour l'API d'administration"),
			},
		},
	}
}
