// Package electionledger implements the D21 single-winner election ledger
// inside the governance context.
//
// The module owns election lifecycle (initialize, vote, tally), the ordered
// ballot validation pipeline, per-voter ballot history and result events
// produced through outbox-backed workers. Business rules live in the
// domain/application layers; storage, clock and transport concerns stay behind
// ports and adapters.
package electionledger
