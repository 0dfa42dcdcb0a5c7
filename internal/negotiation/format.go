package negotiation

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultCurrency = "₹"

	greetingText    = "Welcome to negotiation! Please enter your offer."
	dealThanksText  = "Thank you for negotiating."
	counterOfferFmt = "Our counter offer: %s"
)

// FormatAmount prints integral amounts without decimals.
func FormatAmount(currency string, amount float64) string {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	if amount == math.Trunc(amount) && math.Abs(amount) < 1e15 {
		return fmt.Sprintf("%s%.0f", currency, amount)
	}
	return fmt.Sprintf("%s%.2f", currency, amount)
}

func counterOfferText(currency string, amount float64) string {
	return fmt.Sprintf(counterOfferFmt, FormatAmount(currency, amount))
}

func dealClosedText(currency string, amount *float64) string {
	if amount == nil {
		return "Deal closed! " + dealThanksText
	}
	return fmt.Sprintf("Deal closed at %s! %s", FormatAmount(currency, *amount), dealThanksText)
}
