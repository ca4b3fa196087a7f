package catalog

import (
	"fmt"
	"net/url"
	"real-estate-catalog/internal/models"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var copPrinter = message.NewPrinter(language.Spanish)

// FormatCOP renders a peso amount with Spanish digit grouping ("$350.000.000")
func FormatCOP(amount int64) string {
	return copPrinter.Sprintf("$%d", amount)
}

// WhatsAppMessage builds the pre-filled inquiry text for a property
func WhatsAppMessage(p *models.Property, siteURL string) string {
	link := strings.TrimRight(siteURL, "/") + "/inmueble/" + p.Slug
	return fmt.Sprintf("Hola, me interesa el inmueble %s (%s, %s) %s",
		p.Title, p.Operation, FormatCOP(p.Price), link)
}

// WhatsAppLink returns a wa.me link opening a chat with msg pre-filled.
// Non-digits in phone are dropped.
func WhatsAppLink(phone, msg string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}
