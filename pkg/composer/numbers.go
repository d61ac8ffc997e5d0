package composer

import (
	"strconv"
	"strings"
)

var hindiUnder100 = [100]string{
	"शून्य", "एक", "दो", "तीन", "चार", "पांच", "छह", "सात", "आठ", "नौ",
	"दस", "ग्यारह", "बारह", "तेरह", "चौदह", "पंद्रह", "सोलह", "सत्रह", "अठारह", "उन्नीस",
	"बीस", "इक्कीस", "बाईस", "तेईस", "चौबीस", "पच्चीस", "छब्बीस", "सत्ताईस", "अट्ठाईस", "उनतीस",
	"तीस", "इकतीस", "बत्तीस", "तैंतीस", "चौंतीस", "पैंतीस", "छत्तीस", "सैंतीस", "अड़तीस", "उनतालीस",
	"चालीस", "इकतालीस", "बयालीस", "तैंतालीस", "चवालीस", "पैंतालीस", "छियालीस", "सैंतालीस", "अड़तालीस", "उनचास",
	"पचास", "इक्यावन", "बावन", "तिरेपन", "चौवन", "पचपन", "छप्पन", "सत्तावन", "अट्ठावन", "उनसठ",
	"साठ", "इकसठ", "बासठ", "तिरेसठ", "चौंसठ", "पैंसठ", "छियासठ", "सड़सठ", "अड़सठ", "उनहत्तर",
	"सत्तर", "इकहत्तर", "बहत्तर", "तिहत्तर", "चौहत्तर", "पचहत्तर", "छिहत्तर", "सतहत्तर", "अठहत्तर", "उन्यासी",
	"अस्सी", "इक्यासी", "बयासी", "तिरासी", "चौरासी", "पचासी", "छियासी", "सत्तासी", "अट्ठासी", "नवासी",
	"नब्बे", "इक्यानबे", "बानबे", "तिरानबे", "चौरानबे", "पचानबे", "छियानबे", "सत्तानबे", "अट्ठानबे", "निन्यानबे",
}

// HindiNumber spells n the way it is said on the phone. Round hundreds between
// 1100 and 9900 use the hundreds form ("पंद्रह सौ"); everything else uses the
// crore/lakh/hazaar grouping. Values beyond 99 crore fall back to digits.
func HindiNumber(n int64) string {
	switch {
	case n < 0:
		return "माइनस " + HindiNumber(-n)
	case n < 100:
		return hindiUnder100[n]
	case n > 1000 && n < 10000 && n%100 == 0 && n%1000 != 0:
		return hindiUnder100[n/100] + " सौ"
	case n >= 100_00_00_000:
		return strconv.FormatInt(n, 10)
	}

	var parts []string
	groups := []struct {
		size int64
		word string
	}{
		{1_00_00_000, "करोड़"},
		{1_00_000, "लाख"},
		{1_000, "हज़ार"},
		{100, "सौ"},
	}
	for _, g := range groups {
		if q := n / g.size; q > 0 {
			parts = append(parts, hindiUnder100[q], g.word)
			n %= g.size
		}
	}
	if n > 0 {
		parts = append(parts, hindiUnder100[n])
	}
	return strings.Join(parts, " ")
}
