// Package inbox owns ingested messages and their intent-label ledger:
// idempotent creation keyed by the provider's message id, the write-once
// origin classification, and the append-only label history that operator
// relabels flow through.
package inbox
