// Package settlementengine settles purchases of published papers: it
// computes the exact integer split between the platform account and the
// paper's authors, applies the resulting ledger transfers (or emits
// settlement intents when value movement is delegated off-system), and
// records the outcome atomically.
package settlementengine
