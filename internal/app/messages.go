package app

import (
	"fmt"
	"strings"

	"gopkg.in/telebot.v3"

	"housemanship_bot/internal/domain/vacancy"
)

const portalUpdatedHeader = "*🏥 Housemanship Portal Updated!*\n\n"

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// FormatUpdateMessage renders the broadcast for a non-empty diff followed by
// the full current listing.
func FormatUpdateMessage(diff vacancy.DiffResult, current vacancy.Snapshot) string {
	var b strings.Builder

	if n := len(diff.Added); n > 0 {
		b.WriteString(portalUpdatedHeader)
		fmt.Fprintf(&b, "🆕 *%d new %s added:*\n", n, plural(n, "hospital", "hospitals"))
		for _, e := range diff.Added {
			fmt.Fprintf(&b, " %s\n", e.CenterName)
		}
		b.WriteString("\n")
	}

	if n := len(diff.Removed); n > 0 {
		b.WriteString(portalUpdatedHeader)
		fmt.Fprintf(&b, "❌ *%d %s removed:*\n", n, plural(n, "hospital", "hospitals"))
		for _, e := range diff.Removed {
			fmt.Fprintf(&b, " %s\n", e.CenterName)
		}
		b.WriteString("\n")
	}

	b.WriteString("🏥 *Available Housemanship Vacancies:*\n\n")
	for i, e := range current {
		fmt.Fprintf(&b, "%d. *%s (%d %s)*\n", i+1, e.CenterName, e.SlotsLeft, plural(e.SlotsLeft, "slot", "slots"))
	}
	return b.String()
}

// FormatVacancyList renders the on-demand listing.
func FormatVacancyList(current vacancy.Snapshot) string {
	if len(current) == 0 {
		return "No available vacancies found."
	}
	var b strings.Builder
	b.WriteString("🏥 *Available Housemanship Vacancies:*\n\n")
	for i, e := range current {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, e.CenterName)
	}
	return b.String()
}

// FormatSubscriberAlert renders the personal Telegram message for one task.
func FormatSubscriberAlert(entries []vacancy.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *New housemanship %s on your watch list:*\n\n", plural(len(entries), "vacancy", "vacancies"))
	for _, e := range entries {
		fmt.Fprintf(&b, "• *%s* (%d %s)\n", e.CenterName, e.SlotsLeft, plural(e.SlotsLeft, "slot", "slots"))
	}
	b.WriteString("\nLog in to the portal quickly to apply.")
	return b.String()
}

// portalLoginMarkup builds the inline keyboard with a single login button.
func portalLoginMarkup(loginPageURL string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL("🔑 Login to portal Now", loginPageURL)))
	return markup
}

const quietResetNotice = "😴 No vacancy changes in the last %s. Polling is back to every %s."
