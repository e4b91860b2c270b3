package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/hanko-field/order-admin/internal/platform/auth"
)

// Message keys. French is the default locale.
const (
	msgOrderCreated      = "order.created"
	msgOrderAdvanced     = "order.advanced"
	msgOrderCancelled    = "order.cancelled"
	msgOrderFound        = "order.found"
	msgOrdersListed      = "order.listed"
	msgStockListed       = "inventory.listed"
	msgCustomersListed   = "customer.listed"
	msgRevenueComputed   = "revenue.computed"
	msgInvalidRequest    = "error.invalid_request"
	msgOrderNotFound     = "error.order_not_found"
	msgInsufficientStock = "error.insufficient_stock"
	msgInvalidTransition = "error.invalid_transition"
	msgUnknownStep       = "error.unknown_step"
	msgDuplicateOrder    = "error.duplicate_order"
	msgOrderConflict     = "error.order_conflict"
	msgNoActiveCustomers = "error.no_active_customers"
	msgNoRevenue         = "error.no_revenue"
	msgInternal          = "error.internal"
	msgUnavailable       = "error.unavailable"
)

var supportedLocales = []language.Tag{language.French, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var messageCatalog = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.French))
	entries := map[string][2]string{
		msgOrderCreated:      {"Commande créée avec succès", "Order created successfully"},
		msgOrderAdvanced:     {"Statut de la commande mis à jour", "Order status updated"},
		msgOrderCancelled:    {"Commande annulée avec succès", "Order cancelled successfully"},
		msgOrderFound:        {"Commande trouvée", "Order found"},
		msgOrdersListed:      {"Liste des commandes", "Order list"},
		msgStockListed:       {"État du stock", "Stock levels"},
		msgCustomersListed:   {"Clients actifs", "Active customers"},
		msgRevenueComputed:   {"Chiffre d'affaires du mois", "Monthly revenue"},
		msgInvalidRequest:    {"Requête invalide", "Invalid request"},
		msgOrderNotFound:     {"Commande, client ou produit introuvable", "Order, customer or product not found"},
		msgInsufficientStock: {"Stock insuffisant", "Insufficient stock"},
		msgInvalidTransition: {"Changement de statut non autorisé", "Status change not allowed"},
		msgUnknownStep:       {"Étape de commande inconnue", "Unknown order step"},
		msgDuplicateOrder:    {"Commande déjà existante", "Order already exists"},
		msgOrderConflict:     {"La commande a été modifiée entre-temps", "Order was modified concurrently"},
		msgNoActiveCustomers: {"Aucun client actif", "No active customers"},
		msgNoRevenue:         {"Aucune commande pour cette période", "No orders for this period"},
		msgInternal:          {"Erreur interne du serveur", "Internal server error"},
		msgUnavailable:       {"Service momentanément indisponible", "Service temporarily unavailable"},
	}
	for key, texts := range entries {
		_ = b.SetString(language.French, key, texts[0])
		_ = b.SetString(language.English, key, texts[1])
	}
	return b
}()

// requestLocale picks the locale from Accept-Language, then the token locale claim, then French.
func requestLocale(r *http.Request) language.Tag {
	candidates := []string{r.Header.Get("Accept-Language")}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		candidates = append(candidates, identity.Locale)
	}
	for _, raw := range candidates {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(raw)
		if err != nil || len(tags) == 0 {
			continue
		}
		if _, index, confidence := localeMatcher.Match(tags...); confidence != language.No {
			return supportedLocales[index]
		}
	}
	return language.French
}

func localize(r *http.Request, key string) string {
	return message.NewPrinter(requestLocale(r), message.Catalog(messageCatalog)).Sprintf(key)
}
