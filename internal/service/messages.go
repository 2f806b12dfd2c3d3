package service

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys of the check-in desk.  German is the studio language and
// the fallback; English is offered for staff that asks for it.
const (
	msgMemberNotFound   = "checkin.member_not_found"
	msgNoSubscription   = "checkin.no_subscription"
	msgCardEmpty        = "checkin.card_empty"
	msgExpired          = "checkin.expired"
	msgWelcome          = "checkin.welcome"
	msgWelcomeRemaining = "checkin.welcome_remaining"
)

// expiryDateLayout renders dates the way German receipts and cards do.
const expiryDateLayout = "02.01.2006"

var supportedLanguages = []language.Tag{language.German, language.English}

var languageMatcher = language.NewMatcher(supportedLanguages)

func init() {
	de := map[string]string{
		msgMemberNotFound:   "Mitglied nicht gefunden",
		msgNoSubscription:   "Kein aktives Abonnement",
		msgCardEmpty:        "Karte leer (0 Einträge)",
		msgExpired:          "Abonnement abgelaufen am %s",
		msgWelcome:          "Willkommen, %s!",
		msgWelcomeRemaining: "Willkommen, %s! Verbleibende Einträge: %d",
	}
	en := map[string]string{
		msgMemberNotFound:   "Member not found",
		msgNoSubscription:   "No active subscription",
		msgCardEmpty:        "Card empty (0 entries)",
		msgExpired:          "Subscription expired on %s",
		msgWelcome:          "Welcome, %s!",
		msgWelcomeRemaining: "Welcome, %s! Remaining entries: %d",
	}
	for key, text := range de {
		_ = message.SetString(language.German, key, text)
	}
	for key, text := range en {
		_ = message.SetString(language.English, key, text)
	}
}

// MatchLanguage picks the check-in language from an Accept-Language
// header.  Anything unparseable or unsupported yields German.
func MatchLanguage(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return language.German
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.German
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No {
		return language.German
	}
	return supportedLanguages[idx]
}

func printer(tag language.Tag) *message.Printer {
	if tag == language.Und {
		tag = language.German
	}
	return message.NewPrinter(tag)
}
