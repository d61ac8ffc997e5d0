package frames

// Meta keys shared by transports, STT providers and the engine.
const (
	MetaStreamID      = "stream_id"
	MetaOldStreamID   = "old_stream_id"
	MetaCallSID       = "call_sid"
	MetaTraceID       = "trace_id"
	MetaSource        = "source"
	MetaSpeaker       = "speaker"
	MetaIsFinal       = "is_final"
	MetaConfidence    = "confidence"
	MetaLanguage      = "language"
	MetaReason        = "reason"
	MetaCallEndReason = "call_end_reason"
	MetaFromNumber    = "from_number"
	MetaToNumber      = "to_number"
	MetaEncoding      = "encoding"
	MetaCodec         = "codec"
	MetaFormat        = "format"
)

// Per-call negotiation parameters carried from the dial request to call_start.
const (
	MetaSessionID    = "session_id"
	MetaVendorName   = "vendor_name"
	MetaVendorType   = "vendor_type"
	MetaTargetPrice  = "target_price"
	MetaFloorBound   = "floor_bound"
	MetaCeilingBound = "ceiling_bound"
)

// CallParams lists the meta keys a dial request may pass through to the session.
var CallParams = []string{
	MetaSessionID, MetaVendorName, MetaVendorType,
	MetaTargetPrice, MetaFloorBound, MetaCeilingBound, MetaLanguage,
}
