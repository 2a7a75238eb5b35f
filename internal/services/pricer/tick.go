package pricer

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// lastTradePricePath points at the "last trade closed" array
// [price, lot volume] inside a ticker payload.
const lastTradePricePath = "$[1].c"

// messageKind classifies an inbound feed message.
type messageKind int

const (
	messageTicker messageKind = iota
	messageControl
)

// controlEvent is an object-shaped message (heartbeat, systemStatus,
// subscriptionStatus, error).
type controlEvent struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// parseMessage decodes one raw feed message. Ticker payloads yield their
// last trade price; control events yield messageControl with the decoded event.
func parseMessage(raw []byte) (messageKind, decimal.Decimal, controlEvent, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, decimal.Zero, controlEvent{}, errors.Wrap(domain.ErrMalformedFeedMessage, err.Error())
	}

	switch payload.(type) {
	case map[string]any:
		var event controlEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return 0, decimal.Zero, controlEvent{}, errors.Wrap(domain.ErrMalformedFeedMessage, err.Error())
		}
		return messageControl, decimal.Zero, event, nil
	case []any:
	default:
		return 0, decimal.Zero, controlEvent{}, errors.Wrapf(domain.ErrMalformedFeedMessage, "unexpected payload type %T", payload)
	}

	price, err := lastTradePrice(payload)
	if err != nil {
		return 0, decimal.Zero, controlEvent{}, err
	}

	return messageTicker, price, controlEvent{}, nil
}

func lastTradePrice(payload any) (decimal.Decimal, error) {
	jval, err := jsonpath.Get(lastTradePricePath, payload)
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrMalformedFeedMessage, "%s: %v", lastTradePricePath, err)
	}
	closed, ok := jval.([]any)
	if !ok || len(closed) == 0 {
		return decimal.Zero, errors.Wrapf(domain.ErrMalformedFeedMessage, "%s is %s, want [price, volume]", lastTradePricePath, describe(jval))
	}

	var price decimal.Decimal
	switch v := closed[0].(type) {
	case string:
		price, err = decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(domain.ErrMalformedFeedMessage, "price %q: %v", v, err)
		}
	case float64:
		price = decimal.NewFromFloat(v)
	default:
		return decimal.Zero, errors.Wrapf(domain.ErrMalformedFeedMessage, "price is %s", describe(closed[0]))
	}

	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrMalformedFeedMessage, "non-positive price %s", price)
	}

	return price, nil
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// subscribeRequest is the outbound ticker subscription.
type subscribeRequest struct {
	Event        string       `json:"event"`
	Pair         []string     `json:"pair"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Name string `json:"name"`
}

func newSubscribeRequest(pair domain.Pair) subscribeRequest {
	return subscribeRequest{
		Event:        "subscribe",
		Pair:         []string{pair.WSName()},
		Subscription: subscription{Name: "ticker"},
	}
}
