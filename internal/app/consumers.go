/**
 * @description
 * RabbitMQ consumer glue for cache invalidation. Write-side services publish
 * ledger events after recording a deposit or withdrawal; the only thing this
 * service does with them is drop the cached balance for the affected account
 * so the next /balance call re-resolves.
 *
 * @dependencies
 * - context, encoding/json, log: Standard Go libraries.
 * - internal/domain: Event payload model.
 */

package app

import (
	"context"
	"encoding/json"
	"log"

	"github.com/fondeo/balance-service/internal/domain"
)

// LedgerEventConsumer handles ledger events that must invalidate cached
// balances.
type LedgerEventConsumer struct {
	service *Service
}

// LedgerEventConsumer returns the consumer bound to this service's cache.
func (s *Service) LedgerEventConsumer() *LedgerEventConsumer {
	return &LedgerEventConsumer{service: s}
}

// HandleMessage processes one ledger event delivery. Malformed payloads are
// acknowledged and dropped: re-queuing them would loop forever, and the worst
// case of a lost invalidation is one TTL window of staleness.
func (c *LedgerEventConsumer) HandleMessage(body []byte) bool {
	var event domain.LedgerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=consumer msg=\"ledger event unparseable; dropping\" err=%v", err)
		return true
	}
	if event.Email == "" {
		log.Printf("level=warn component=consumer msg=\"ledger event missing email; dropping\" event_type=%s", event.EventType)
		return true
	}

	c.service.InvalidateBalance(context.Background(), event.Email)
	return true
}
