package revenue

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/lead-qualifier/internal/model"
)

var multiplierRe = regexp.MustCompile(`(?i)([\d.,]+)\s*(mln|mld|milion\w*|miliard\w*|[kmb])\b`)

// ParseAmount converts an Italian-formatted revenue string into euros.
// Accepted forms: "3.815.456", "€ 5.045.628,00", "23,5 mln", "23.0 K".
func ParseAmount(s string) (*model.Money, bool) {
	if s == "" {
		return nil, false
	}
	text := strings.TrimSpace(strings.ReplaceAll(s, "€", ""))

	if m := multiplierRe.FindStringSubmatch(text); m != nil {
		num, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			switch strings.ToLower(m[2])[0] {
			case 'k':
				num *= 1_000
			case 'b':
				num *= 1_000_000_000
			default: // m, mln, milioni, mld, miliardi
				if strings.HasPrefix(strings.ToLower(m[2]), "mld") || strings.HasPrefix(strings.ToLower(m[2]), "miliard") {
					num *= 1_000_000_000
				} else {
					num *= 1_000_000
				}
			}
			return toMoney(num)
		}
	}

	// Keep only digits and separators.
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, text)
	if clean == "" {
		return nil, false
	}

	// Italian decimal comma: "5.045.628,00".
	if strings.Contains(clean, ",") {
		parts := strings.SplitN(clean, ",", 2)
		integer := strings.ReplaceAll(parts[0], ".", "")
		num, err := strconv.ParseFloat(integer+"."+parts[1], 64)
		if err != nil {
			return nil, false
		}
		return toMoney(num)
	}

	// Dots only: multiple groups are thousands separators ("3.815.456");
	// a single dot followed by exactly three digits is too ("815.456");
	// otherwise it is a decimal point ("23.5").
	dotParts := strings.Split(clean, ".")
	switch {
	case len(dotParts) > 2:
		num, err := strconv.ParseFloat(strings.ReplaceAll(clean, ".", ""), 64)
		if err != nil {
			return nil, false
		}
		return toMoney(num)
	case len(dotParts) == 2 && len(dotParts[1]) == 3:
		num, err := strconv.ParseFloat(strings.ReplaceAll(clean, ".", ""), 64)
		if err != nil {
			return nil, false
		}
		return toMoney(num)
	default:
		num, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil, false
		}
		return toMoney(num)
	}
}

func toMoney(euros float64) (*model.Money, bool) {
	if euros <= 0 || math.IsNaN(euros) || math.IsInf(euros, 0) {
		return nil, false
	}
	return &model.Money{Amount: int64(math.Round(euros * 100)), Currency: "EUR"}, true
}
