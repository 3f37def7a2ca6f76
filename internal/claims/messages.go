// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import (
	"context"

	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
)

// Notification events.
const (
	EventClaimCode         = "claim_code"
	EventClaimPending      = "claim_donor_pending"
	EventConfirmedDonor    = "claim_confirmed_donor"
	EventConfirmedReceiver = "claim_confirmed_recipient"
	EventReleased          = "claim_released"
)

func recipientOf(u *models.User) notify.Recipient {
	return notify.Recipient{
		UserID: u.ID,
		Name:   u.Name,
		Phone:  u.Phone,
		Email:  u.Email,
		Locale: u.Locale,
	}
}

// render localizes the subject and body of event for the user's locale.
func render(ctx context.Context, to *models.User, event string, listingID int64, data map[string]any) notify.Message {
	ctx = i18n.WithUserLocale(ctx, to.Locale)
	return notify.Message{
		Event:     event,
		ListingID: listingID,
		Subject:   i18n.TData(ctx, event+"_subject", data),
		Body:      i18n.TData(ctx, event+"_body", data),
	}
}

func listingData(l *models.Listing) map[string]any {
	return map[string]any{
		"Title":   l.Title,
		"Address": l.Address,
	}
}

func contactData(l *models.Listing, other *models.User) map[string]any {
	data := listingData(l)
	data["Name"] = other.Name
	data["Phone"] = other.Phone
	data["Email"] = other.Email
	return data
}
