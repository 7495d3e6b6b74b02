package bot

import (
	"errors"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
)

const msgInternalError = "❌ Une erreur interne est survenue. L'équipe a été prévenue."

var denials = []struct {
	err error
	msg string
}{
	{service.ErrInvalidDuration, "❌ Durée invalide. Exemples : `30m`, `2h`, `1d`."},
	{service.ErrInvalidAmount, "❌ Montant invalide."},
	{service.ErrInvalidColor, "❌ Couleur invalide. Utilisez un code hexadécimal comme `#FF5733`."},
	{service.ErrInvalidName, "❌ Nom ou texte invalide."},
	{service.ErrInvalidWinnerCount, "❌ Le nombre de gagnants doit être compris entre 1 et 25."},
	{service.ErrUnknownEvent, "❌ Cet événement n'existe pas."},
	{service.ErrUnknownItem, "❌ Cet article n'existe pas dans la boutique."},
	{service.ErrUnknownProduct, "❌ Produit introuvable."},
	{service.ErrUnknownTicketType, "❌ Type de ticket inconnu."},
	{service.ErrUnknownCategory, "❌ Catégorie de classement inconnue."},
	{service.ErrInsufficientFunds, "❌ Solde insuffisant."},
	{service.ErrLevelTooLow, "❌ Votre niveau est trop bas pour cette action."},
	{service.ErrAccountTooYoung, "❌ Votre compte est trop récent pour demander un retrait."},
	{service.ErrBelowThreshold, "❌ Le montant est inférieur au seuil de retrait de votre niveau."},
	{service.ErrAlreadyInGuild, "❌ Vous faites déjà partie d'une guilde."},
	{service.ErrNotInGuild, "❌ Vous ne faites partie d'aucune guilde."},
	{service.ErrGuildFull, "❌ Cette guilde est complète."},
	{service.ErrNotGuildOwner, "❌ Seul le chef de la guilde peut faire cela."},
	{service.ErrOwnerCannotLeave, "❌ Le chef ne peut pas quitter sa guilde. Dissolvez-la plutôt."},
	{service.ErrNameTaken, "❌ Ce nom de guilde est déjà pris."},
	{service.ErrSelfInvite, "❌ Vous ne pouvez pas inviter cette personne."},
	{service.ErrAlreadyParticipant, "❌ Vous participez déjà."},
	{service.ErrEventActive, "❌ Cet événement est déjà actif."},
	{service.ErrEventNotActive, "❌ Cet événement n'est pas actif."},
	{service.ErrFeatureDisabled, "❌ Cette fonctionnalité est désactivée."},
	{service.ErrNotAdmin, "❌ Commande réservée aux administrateurs."},
	{service.ErrAlreadyVerified, "✅ Vous êtes déjà vérifié."},
	{service.ErrNoParticipants, "❌ Aucun participant."},
	{service.ErrCashoutNotFound, "❌ Demande introuvable ou déjà traitée."},
	{service.ErrGuildNotFound, "❌ Guilde introuvable."},
	{service.ErrGiveawayNotFound, "❌ Giveaway introuvable."},
	{service.ErrChannelNotConfigured, "❌ Le salon nécessaire n'est pas configuré."},
	{service.ErrRoleNotConfigured, "❌ Le rôle nécessaire n'est pas configuré."},
	{service.ErrDMFailed, "❌ Impossible de vous envoyer un message privé. Vérifiez vos paramètres de confidentialité."},
	{service.ErrMemberNotFound, "❌ Membre introuvable."},
	{service.ErrForbidden, "❌ Le bot n'a pas les permissions nécessaires."},
}

// denial returns the user-facing text for a known failure.
func denial(err error) (string, bool) {
	for _, d := range denials {
		if errors.Is(err, d.err) {
			return d.msg, true
		}
	}
	return msgInternalError, false
}
