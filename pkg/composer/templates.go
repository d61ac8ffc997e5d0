package composer

// Template keys. A keyed lookup falls back from "kind.detail" to "kind".
const (
	KeyCounterEarly = "counter.early"
	KeyCounterLate  = "counter.late"
	KeyAccept       = "accept"
	KeyReject       = "reject"
	KeyClarify      = "clarify"
	KeyWalkAway     = "walk_away"
)

// Placeholders substituted into templates.
const (
	PlaceholderAmount     = "{amount}"
	PlaceholderCandidates = "{candidates}"
	PlaceholderRound      = "{round}"
)

func defaultTemplates() map[Language]map[string][]string {
	return map[Language]map[string][]string{
		LangHindi: {
			"clarify.ask_price": {
				"जी नमस्ते भैया, रेट क्या लगेगा?",
				"हेलो भैया, ज़रा बताइये, इसका चार्ज क्या लगेगा?",
			},
			"clarify.confirm_amount": {
				"जी, आपने {amount} बोला क्या?",
				"अच्छा, {amount}? एक बार फिर से बताइये।",
			},
			"clarify.which_amount": {
				"जी, {candidates} बोला आपने? कुल कितना लगेगा, ज़रा साफ़ बताइये।",
			},
			"clarify.repeat": {
				"हेलो भैया, आवाज़ कट गई, फिर से बोलिए?",
			},
			KeyCounterEarly: {
				"अरे भैया, ये तो बहुत ज्यादा है। {amount} में हो जाएगा? मार्केट रेट भी यही चल रहा है।",
				"देखिए भैया, हम तो रेगुलर आते हैं। {amount} में करना है तो बताइए।",
			},
			KeyCounterLate: {
				"अच्छा भैया, आखिरी बोल रहा हूं, {amount} कर दीजिए।",
				"जी भैया, चलिए {amount} में फाइनल कर दीजिए।",
			},
			KeyAccept: {
				"ठीक है भैया, {amount} में कन्फर्म करते हैं। डील पक्की।",
			},
			KeyReject: {
				"जी, माफ़ कीजिए भैया, ये रेट ठीक नहीं लग रहा। धन्यवाद।",
			},
			"walk_away.ceiling_exceeded": {
				"नहीं भैया, बजट के बाहर है। धन्यवाद।",
			},
			"walk_away.vendor_declined": {
				"ठीक है भैया, फिर हम और कहीं देख लेते हैं। धन्यवाद।",
			},
			"walk_away.no_offer_received": {
				"कोई बात नहीं भैया, हम बाद में फ़ोन करते हैं। धन्यवाद।",
			},
			"walk_away.clarification_exhausted": {
				"भैया, आवाज़ साफ़ नहीं आ रही, हम बाद में फ़ोन करते हैं। धन्यवाद।",
			},
			KeyWalkAway: {
				"ठीक है भैया, बाद में बात करते हैं। धन्यवाद।",
			},
		},
		LangHinglish: {
			"clarify.ask_price": {
				"Ji namaste bhaiya, rate kya lagega?",
				"Hello bhaiya, zara bataiye, iska charge kya lagega?",
			},
			"clarify.confirm_amount": {
				"Ji, aapne {amount} bola kya?",
			},
			"clarify.which_amount": {
				"Ji, {candidates} bola aapne? Total kitna lagega, zara saaf bataiye.",
			},
			"clarify.repeat": {
				"Hello bhaiya, awaaz kat gayi, phir se boliye?",
			},
			KeyCounterEarly: {
				"Bhaiya, {amount} mein ho jayega? Market rate bhi yahi chal raha hai.",
				"Thoda mehenga lag raha hai bhaiya, {amount} mein kar dijiye na.",
			},
			KeyCounterLate: {
				"Accha bhaiya, last bol raha hoon, {amount} kar dijiye.",
				"Ji bhaiya, chaliye {amount} mein final kar dijiye.",
			},
			KeyAccept: {
				"Theek hai bhaiya, {amount} mein confirm karte hain. Deal pakki.",
			},
			KeyReject: {
				"Maaf kijiye bhaiya, yeh rate theek nahi lag raha. Dhanyavaad.",
			},
			"walk_away.ceiling_exceeded": {
				"Nahi bhaiya, budget ke bahar hai. Dhanyavaad.",
			},
			"walk_away.vendor_declined": {
				"Theek hai bhaiya, phir hum aur kahin dekh lete hain. Dhanyavaad.",
			},
			"walk_away.no_offer_received": {
				"Koi baat nahi bhaiya, hum baad mein phone karte hain. Dhanyavaad.",
			},
			"walk_away.clarification_exhausted": {
				"Bhaiya, awaaz saaf nahi aa rahi, hum baad mein phone karte hain. Dhanyavaad.",
			},
			KeyWalkAway: {
				"Theek hai bhaiya, baad mein baat karte hain. Dhanyavaad.",
			},
		},
		LangEnglish: {
			"clarify.ask_price": {
				"Hello, what would the rate be?",
			},
			"clarify.confirm_amount": {
				"Sorry, did you say {amount}?",
			},
			"clarify.which_amount": {
				"Sorry, did you say {candidates}? What is the total, please?",
			},
			"clarify.repeat": {
				"Sorry, the line broke. Could you say that again?",
			},
			KeyCounterEarly: {
				"That is a bit high. Can you do {amount}? That is the going rate.",
			},
			KeyCounterLate: {
				"This is my last offer, please make it {amount}.",
			},
			KeyAccept: {
				"Okay, {amount} works. Let's confirm it.",
			},
			KeyReject: {
				"Sorry, that rate does not work for us. Thank you.",
			},
			"walk_away.ceiling_exceeded": {
				"Sorry, that is outside our budget. Thank you.",
			},
			"walk_away.vendor_declined": {
				"Okay, we will look elsewhere then. Thank you.",
			},
			KeyWalkAway: {
				"Okay, we will talk later. Thank you.",
			},
		},
	}
}
