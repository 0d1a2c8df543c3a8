package notify

import (
	"context"
	"fmt"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/kafka"
)

// Sender delivers negotiation notifications to users. The transport is a
// stub; the worker wires it to the notifications topic.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.NegotiationEvent) error {
	switch event.Type {
	case kafka.EventBookingStatusChanged:
		fmt.Printf("notify booking %s: status changed to %s\n", event.BookingID, event.BookingStatus)
	case kafka.EventProposalCreated:
		fmt.Printf("notify booking %s: new proposal %s\n", event.BookingID, event.ProposalID)
	case kafka.EventProposalAccepted, kafka.EventProposalRejected,
		kafka.EventProposalCancelled, kafka.EventProposalExpired:
		fmt.Printf("notify booking %s: proposal %s %s\n", event.BookingID, event.ProposalID, event.Type)
	case kafka.EventPriceOfferAccepted, kafka.EventPriceOfferRejected, kafka.EventPriceOfferExpired:
		fmt.Printf("notify booking %s: price offer %s %s\n", event.BookingID, event.MessageID, event.Type)
	default:
		fmt.Printf("notify booking %s: %s\n", event.BookingID, event.Type)
	}
	return nil
}
