/**
 * @description
 * This file maps raw ledger records into the canonical transaction shape.
 * Raw records arrive with Spanish field names, unsigned string amounts and
 * free-form status strings; normalization produces a signed amount, a
 * credit/debit type and a closed status enumeration. The mapping is total:
 * nothing the ledger sends can make it fail.
 *
 * @dependencies
 * - math, strconv, strings: Standard Go libraries.
 * - internal/domain: Raw and normalized record models.
 */

package app

import (
	"math"
	"strconv"
	"strings"

	"github.com/fondeo/balance-service/internal/domain"
)

// NormalizeTransactions maps a batch of raw ledger records.
func NormalizeTransactions(raw []domain.RawTransaction) []domain.NormalizedTransaction {
	normalized := make([]domain.NormalizedTransaction, 0, len(raw))
	for _, r := range raw {
		normalized = append(normalized, NormalizeTransaction(r))
	}
	return normalized
}

// NormalizeTransaction maps one raw ledger record into the canonical shape.
// The original id_unico is preserved unmodified for enrichment joins against
// the record-of-truth store.
func NormalizeTransaction(raw domain.RawTransaction) domain.NormalizedTransaction {
	amount := parseAmount(raw.MontoUSD)

	txType := domain.TransactionDebit
	if strings.EqualFold(strings.TrimSpace(raw.Direccion), "in") {
		txType = domain.TransactionCredit
	} else {
		amount = -amount
	}

	return domain.NormalizedTransaction{
		ID:          raw.IDUnico,
		Date:        raw.Fecha,
		Description: describeTransaction(raw.Tipo, raw.Cuenta),
		Amount:      amount,
		Type:        txType,
		Status:      MapTransactionStatus(raw.Estado),
	}
}

// MapTransactionStatus maps a raw ledger status string onto the closed status
// set. Every input maps to exactly one status; anything unrecognized is
// pending, the safest assumption for a movement of unknown state.
func MapTransactionStatus(estado string) domain.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(estado)) {
	case "processed", "completed":
		return domain.TransactionCompleted
	case "failed", "declined", "rejected":
		return domain.TransactionFailed
	case "cancelled", "canceled":
		return domain.TransactionCancelled
	case "awaitingpayment":
		return domain.TransactionAwaiting
	}
	return domain.TransactionPending
}

// parseAmount parses an unsigned decimal amount; unparsable values become 0.
func parseAmount(monto string) float64 {
	trimmed := strings.TrimSpace(monto)
	if trimmed == "" {
		return 0
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return math.Abs(value)
}

// describeTransaction builds the display description from the localized
// movement label plus the counterparty account reference when present.
func describeTransaction(tipo, cuenta string) string {
	var label string
	switch strings.ToLower(strings.TrimSpace(tipo)) {
	case "deposit", "deposito", "depósito":
		label = "Depósito"
	case "withdrawal", "retiro":
		label = "Retiro"
	default:
		label = "Movimiento"
	}

	counterparty := strings.TrimSpace(cuenta)
	if counterparty == "" {
		return label
	}
	return label + " - " + counterparty
}
