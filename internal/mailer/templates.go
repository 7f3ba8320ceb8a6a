package mailer

import (
	"fmt"
	"strings"
)

// Plain-text email bodies. Pure functions so they are testable without a
// mail endpoint.

// Message is a rendered subject/body pair.
type Message struct {
	Subject string
	Text    string
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// ShippingNotification renders the "your order shipped" email.
func ShippingNotification(firstName, orderNumber, carrier, trackingNumber string) Message {
	name := firstName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Great news - your order %s is on its way!\n\n", orderNumber)
	if trackingNumber != "" {
		fmt.Fprintf(&b, "Carrier: %s\nTracking number: %s\n\n", carrier, trackingNumber)
	}
	b.WriteString("You can track your package using the number above.\n\nThanks for shopping with OptiBio!\n")

	return Message{
		Subject: fmt.Sprintf("Your OptiBio order %s has shipped", orderNumber),
		Text:    b.String(),
	}
}

// RefundNotification renders the refund confirmation email.
func RefundNotification(firstName, orderNumber string, amountInCents int64, reason string) Message {
	name := firstName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "We've issued a refund of %s for order %s.\n\n", dollars(amountInCents), orderNumber)
	if reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n\n", reason)
	}
	b.WriteString("Depending on your bank, the refund may take 5-10 business days to appear.\n\nThe OptiBio Team\n")

	return Message{
		Subject: fmt.Sprintf("Refund issued for order %s", orderNumber),
		Text:    b.String(),
	}
}

// ReferralEarned renders the "you earned a credit" email sent to a referrer.
func ReferralEarned(referrerName, friendName string, creditInCents int64) Message {
	name := referrerName
	if name == "" {
		name = "Friend"
	}
	friend := friendName
	if friend == "" {
		friend = "Your friend"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "%s just made their first purchase using your referral link.\n", friend)
	fmt.Fprintf(&b, "You've earned a %s credit - it will be applied automatically at your next checkout.\n\n", dollars(creditInCents))
	b.WriteString("Keep sharing to keep earning!\n\nThe OptiBio Team\n")

	return Message{
		Subject: fmt.Sprintf("You earned a %s referral credit!", dollars(creditInCents)),
		Text:    b.String(),
	}
}
