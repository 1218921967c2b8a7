package email

import (
	"context"
	"fmt"

	"github.com/suitpax/orderchanges/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.ChangeEvent) error {
	fmt.Printf("send email to user %s about %s for order %s (change request %s, status %s)\n",
		event.UserID, event.Type, event.OrderID, event.ChangeRequestID, event.Status)
	return nil
}
