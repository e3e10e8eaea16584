/**
 * @description
 * This file defines the raw transaction record shape returned by the external
 * ledger and the canonical normalized record the API exposes. Raw records are
 * heterogeneous (Spanish field names, unsigned string amounts, free-form status
 * strings); normalized records carry a signed amount, a credit/debit type and a
 * closed status enumeration.
 */

package domain

// TransactionType classifies the direction of a movement.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionStatus is the closed status set for normalized transactions.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionAwaiting  TransactionStatus = "awaiting"
)

// RawTransaction mirrors one movement record as the external ledger returns it.
// IDUnico is preserved verbatim so downstream consumers can join against the
// record-of-truth store.
type RawTransaction struct {
	IDUnico       string `json:"id_unico"`
	Fecha         string `json:"fecha"`
	Tipo          string `json:"tipo"`
	Cuenta        string `json:"cuenta_origen_o_destino"`
	Direccion     string `json:"direccion"`
	Estado        string `json:"estado"`
	MontoUSD      string `json:"monto_usd"`
	MontoInicial  string `json:"monto_inicial,omitempty"`
	MontoFinal    string `json:"monto_final,omitempty"`
	Moneda        string `json:"moneda,omitempty"`
	TasaConversio string `json:"tasa_conversion,omitempty"`
}

// NormalizedTransaction is the canonical movement record exposed by the API.
type NormalizedTransaction struct {
	ID          string            `json:"id"`
	Date        string            `json:"date"`
	Description string            `json:"description"`
	Amount      float64           `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
}
