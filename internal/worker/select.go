package worker

import (
	"fmt"
	"strings"

	"github.com/reachlabs/reach-be/internal/delivery"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/internal/worker/storage"
)

// selectChannel picks the delivery channel for a contact. The preference
// order is fixed for all message queues: sms when a phone number exists,
// email as the fallback. A present-but-empty field counts as absent. With
// neither, the job fails terminally and no adapter call is made.
func selectChannel(c *storage.Contact) (delivery.Channel, string, error) {
	if c.Phone.Valid {
		if phone := strings.TrimSpace(c.Phone.String); phone != "" {
			return delivery.ChannelSMS, phone, nil
		}
	}

	if c.Email.Valid {
		if email := strings.TrimSpace(c.Email.String); email != "" {
			return delivery.ChannelEmail, email, nil
		}
	}

	return delivery.ChannelNone, "", fmt.Errorf("%w: contact %s", job.ErrNoDeliverableAddress, c.ContactID)
}
