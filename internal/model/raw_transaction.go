package model

// ProcessingStatus is one-way: pending -> processed, or pending -> failed.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingProcessed ProcessingStatus = "processed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// RawTransaction is one raw item retrieved from a provider, kept verbatim
// (as opaque Payload) alongside enough provenance to make it idempotent
// and to let the Processor later map it.
type RawTransaction struct {
	ID      string
	SessionID string

	SourceName          string
	ProviderName        string
	VenueTransactionID  string
	TransactionTypeHint string
	SourceAddress       string

	Payload           []byte // canonical UTF-8 text; decimals preserved as strings
	NormalizedPreview []byte

	EventID string // 256-bit deterministic hash, see internal/eventid

	ProcessingStatus ProcessingStatus
	Error            string
}

// UniqueKey is the (source, venueTxId, transactionTypeHint, sourceAddress)
// tuple the store enforces uniqueness on — distinct from EventID, which is
// the hash of that same tuple plus ProviderName.
type UniqueKey struct {
	SourceName          string
	VenueTransactionID  string
	TransactionTypeHint string
	SourceAddress       string
}

func (r RawTransaction) Key() UniqueKey {
	return UniqueKey{
		SourceName:          r.SourceName,
		VenueTransactionID:  r.VenueTransactionID,
		TransactionTypeHint: r.TransactionTypeHint,
		SourceAddress:       r.SourceAddress,
	}
}
