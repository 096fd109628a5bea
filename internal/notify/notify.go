package notify

import (
	"context"
	"errors"

	"github.com/example/partner-dispatch/internal/models"
)

// ErrNoToken is returned without attempting delivery when the partner has
// no registered push token.
var ErrNoToken = errors.New("partner has no push token")

// Gateway is the outbound push transport; FCMClient in production.
type Gateway interface {
	Send(ctx context.Context, token string, payload Payload) error
}

// PushNotifier delivers one payload to one partner. A live WebSocket
// session is preferred; otherwise the message goes through the push
// gateway. No retries here: the orchestrator decides what a failure
// means per dispatch shape.
type PushNotifier struct {
	WS  *WSRegistry
	FCM Gateway
}

func (n *PushNotifier) Notify(ctx context.Context, p models.Partner, payload Payload) error {
	if p.PushToken == "" {
		return ErrNoToken
	}
	if n.WS != nil {
		if err := n.WS.Send(p.ID, payload); err == nil {
			return nil
		}
	}
	if n.FCM == nil {
		return ErrNoSession
	}
	return n.FCM.Send(ctx, p.PushToken, payload)
}
