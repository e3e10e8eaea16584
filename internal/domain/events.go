/**
 * @description
 * Event payloads consumed from RabbitMQ. Write-side flows elsewhere in the
 * platform publish ledger events after a deposit or withdrawal is recorded;
 * this service only consumes them to force-invalidate cached balances.
 */

package domain

// LedgerEvent is published on the platform topic exchange whenever a movement
// is recorded for an account. Email is the account owner's original address,
// which is also the balance cache key.
type LedgerEvent struct {
	Email     string `json:"email"`
	EventType string `json:"event_type,omitempty"`
	Reference string `json:"reference,omitempty"`
}
