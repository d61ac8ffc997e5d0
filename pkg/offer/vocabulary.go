package offer

import "github.com/desiyatra/bargainer/pkg/transcript"

// Vocabulary holds the word lists the extractor recognizes. Keys may be written
// in any script variant; they are normalized when an Extractor is built.
type Vocabulary struct {
	Currency    string
	DefaultUnit Unit

	// Numerals are standalone number words, including fractions like dedh (1.5).
	Numerals map[string]float64
	// Multipliers scale the preceding value: sau, hazaar, lakh.
	Multipliers map[string]float64
	// Modifiers shift the following numeral: saade +0.5, sawa +0.25, paune -0.25.
	Modifiers map[string]float64
	// WeakNumerals double as ordinary words ("do" = give) and only count
	// when followed by a multiplier or a currency token.
	WeakNumerals map[string]bool

	CurrencyTokens map[string]bool
	UnitWords      map[string]Unit
	// PriceCues mark an utterance as talking about price even without a currency token.
	PriceCues map[string]bool
	// QuantityNouns disqualify a number directly before them ("2 log", "7 seater").
	QuantityNouns map[string]bool
	// Negations disqualify a number directly before them ("1500 nahi, 1200").
	Negations map[string]bool
}

// DefaultVocabulary covers Hindi, Hinglish and Indian English price talk.
func DefaultVocabulary(currency string, unit Unit) Vocabulary {
	if currency == "" {
		currency = "INR"
	}
	return Vocabulary{
		Currency:    currency,
		DefaultUnit: unit,
		Numerals: map[string]float64{
			"ek": 1, "do": 2, "teen": 3, "tin": 3, "char": 4, "chaar": 4, "paanch": 5, "panch": 5,
			"chhe": 6, "chhah": 6, "cheh": 6, "saat": 7, "aath": 8, "nau": 9, "das": 10,
			"gyarah": 11, "gyara": 11, "barah": 12, "bara": 12, "terah": 13, "chaudah": 14, "chauda": 14,
			"pandrah": 15, "pandra": 15, "solah": 16, "sola": 16, "satrah": 17, "satra": 17,
			"atharah": 18, "athara": 18, "unnis": 19, "bees": 20, "bis": 20, "ikkis": 21, "bais": 22,
			"teis": 23, "chaubis": 24, "pachis": 25, "pachchis": 25, "chhabbis": 26, "sattais": 27,
			"athais": 28, "untis": 29, "tees": 30, "paintis": 35, "chalis": 40, "chaalis": 40,
			"paintalis": 45, "pachas": 50, "pachaas": 50, "saath": 60, "pachpan": 55, "sattar": 70,
			"pachattar": 75, "assi": 80, "nabbe": 90,
			"dedh": 1.5, "dhai": 2.5, "dhaai": 2.5,

			"एक": 1, "दो": 2, "तीन": 3, "चार": 4, "पांच": 5, "छह": 6, "छः": 6, "सात": 7, "आठ": 8,
			"नौ": 9, "दस": 10, "ग्यारह": 11, "बारह": 12, "तेरह": 13, "चौदह": 14, "पंद्रह": 15,
			"सोलह": 16, "सत्रह": 17, "अठारह": 18, "उन्नीस": 19, "बीस": 20, "पच्चीस": 25, "तीस": 30,
			"पैंतीस": 35, "चालीस": 40, "पैंतालीस": 45, "पचास": 50, "पचपन": 55, "साठ": 60,
			"सत्तर": 70, "पचहत्तर": 75, "अस्सी": 80, "नब्बे": 90,
			"डेढ़": 1.5, "ढाई": 2.5,

			"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8,
			"nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
			"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
			"twenty": 20, "twentyfive": 25, "thirty": 30, "forty": 40, "fifty": 50, "sixty": 60,
			"seventy": 70, "eighty": 80, "ninety": 90,
		},
		Multipliers: map[string]float64{
			"sau": 100, "hazaar": 1000, "hazar": 1000, "hajar": 1000, "lakh": 100000, "lac": 100000,
			"सौ": 100, "हजार": 1000, "हज़ार": 1000, "लाख": 100000,
			"hundred": 100, "thousand": 1000,
		},
		Modifiers: map[string]float64{
			"saade": 0.5, "sade": 0.5, "sawa": 0.25, "sava": 0.25, "paune": -0.25,
			"साढ़े": 0.5, "सवा": 0.25, "पौने": -0.25,
		},
		WeakNumerals: map[string]bool{
			"ek": true, "do": true, "saath": true, "एक": true, "दो": true, "one": true,
		},
		CurrencyTokens: map[string]bool{
			"₹": true, "rs": true, "rupaye": true, "rupaiye": true, "rupay": true, "rupye": true,
			"rupees": true, "rupee": true, "rupiya": true, "rupaiya": true, "rupya": true, "inr": true,
			"रुपये": true, "रुपए": true, "रुपया": true, "रूपये": true, "रूपए": true, "रु": true,
		},
		UnitWords: map[string]Unit{
			"trip": UnitPerTrip, "chakkar": UnitPerTrip, "sawari": UnitPerTrip, "drop": UnitPerTrip,
			"raat": UnitPerNight, "night": UnitPerNight, "रात": UnitPerNight,
			"din": UnitPerDay, "day": UnitPerDay, "दिन": UnitPerDay,
			"person": UnitPerPerson, "head": UnitPerPerson, "plate": UnitPerPerson, "थाली": UnitPerPerson,
		},
		PriceCues: map[string]bool{
			"rate": true, "bhada": true, "bhaada": true, "kiraya": true, "kiraaya": true, "fare": true,
			"lagega": true, "lagenge": true, "lagegi": true, "lagta": true, "denge": true, "dijiye": true,
			"final": true, "fix": true, "fixed": true, "charge": true, "price": true, "total": true,
			"padega": true, "mein": true, "me": true, "hoga": true, "chalega": true,
			"रेट": true, "भाड़ा": true, "किराया": true, "लगेगा": true, "लगेंगे": true, "देंगे": true,
			"फाइनल": true, "चार्ज": true, "पड़ेगा": true, "में": true, "होगा": true, "चलेगा": true,
		},
		QuantityNouns: map[string]bool{
			"log": true, "logon": true, "aadmi": true, "people": true, "persons": true, "bande": true,
			"baje": true, "km": true, "kms": true, "kilometer": true, "minute": true, "min": true,
			"ghanta": true, "ghante": true, "hour": true, "hours": true, "saal": true,
			"seater": true, "seat": true, "kamre": true, "kamra": true, "room": true, "rooms": true,
			"days": true, "nights": true, "raat": true, "din": true, "baar": true,
			"लोग": true, "बजे": true, "किलोमीटर": true, "मिनट": true, "घंटे": true, "रात": true, "दिन": true,
		},
		Negations: map[string]bool{
			"nahi": true, "nahin": true, "nai": true, "not": true, "no": true, "नहीं": true,
		},
	}
}

// normalized rewrites every key through the transcript normalizer so lookups
// match utterance tokens regardless of how the vocabulary was spelled.
func (v Vocabulary) normalized() Vocabulary {
	out := v
	out.Numerals = normalizeFloatKeys(v.Numerals)
	out.Multipliers = normalizeFloatKeys(v.Multipliers)
	out.Modifiers = normalizeFloatKeys(v.Modifiers)
	out.WeakNumerals = normalizeSet(v.WeakNumerals)
	out.CurrencyTokens = normalizeSet(v.CurrencyTokens)
	out.PriceCues = normalizeSet(v.PriceCues)
	out.QuantityNouns = normalizeSet(v.QuantityNouns)
	out.Negations = normalizeSet(v.Negations)
	out.UnitWords = make(map[string]Unit, len(v.UnitWords))
	for k, u := range v.UnitWords {
		if nk := normalizeKey(k); nk != "" {
			out.UnitWords[nk] = u
		}
	}
	return out
}

func normalizeKey(k string) string {
	return transcript.Normalize(k, nil)
}

func normalizeFloatKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if nk := normalizeKey(k); nk != "" {
			out[nk] = v
		}
	}
	return out
}

func normalizeSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		if nk := normalizeKey(k); nk != "" && v {
			out[nk] = true
		}
	}
	return out
}
