package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Dialogue-level reasons. All but the last two are recovered inside the call.
	ReasonIncompleteTurn    ReasonCode = "incomplete_turn"
	ReasonAmbiguousOffer    ReasonCode = "ambiguous_offer"
	ReasonExtractionFailure ReasonCode = "extraction_failure"
	ReasonSessionTimedOut   ReasonCode = "session_timed_out"
	ReasonCallDropped       ReasonCode = "call_dropped"

	ReasonSessionTerminal   ReasonCode = "session_terminal"
	ReasonInvalidTransition ReasonCode = "invalid_transition"
	ReasonCapacity          ReasonCode = "session_capacity"

	ReasonSTTConnect ReasonCode = "stt_connect"
	ReasonSTTSend    ReasonCode = "stt_send"

	ReasonIntentClassify    ReasonCode = "intent_classify"
	ReasonIntentRateLimit   ReasonCode = "intent_rate_limit"
	ReasonIntentCircuitOpen ReasonCode = "intent_circuit_open"

	ReasonOutcomeReport ReasonCode = "outcome_report"
	ReasonOutcomeStore  ReasonCode = "outcome_store"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"
	ReasonTransportSpeak            ReasonCode = "transport_speak"
	ReasonTransportHangup           ReasonCode = "transport_hangup"
	ReasonTransportDial             ReasonCode = "transport_dial"
)
