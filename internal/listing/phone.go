package listing

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// PhonePicker chooses the phone number among the texts visible after the
// contact has been revealed.
type PhonePicker interface {
	Pick(texts []string) (string, bool)
	Name() string
}

// MostDigits keeps texts without letters that carry at least MinDigits
// digits and returns the one with the most digits. The first candidate wins
// ties.
type MostDigits struct {
	MinDigits int
}

// Pick implements PhonePicker.
func (p MostDigits) Pick(texts []string) (string, bool) {
	best, bestDigits := "", 0
	for _, raw := range texts {
		text := strings.TrimSpace(raw)
		if text == "" || strings.IndexFunc(text, unicode.IsLetter) >= 0 {
			continue
		}
		n := countDigits(text)
		if n >= p.MinDigits && n > bestDigits {
			best, bestDigits = text, n
		}
	}
	return best, bestDigits > 0
}

// Name implements PhonePicker.
func (p MostDigits) Name() string { return "most-digits" }

// PatternPicker returns the first text whose compacted form (whitespace,
// dots, dashes and parentheses removed) matches Pattern.
type PatternPicker struct {
	Label   string
	Pattern *regexp.Regexp
}

var compactReplacer = strings.NewReplacer(" ", "", "\u00a0", "", ".", "", "-", "", "(", "", ")", "")

// Pick implements PhonePicker.
func (p PatternPicker) Pick(texts []string) (string, bool) {
	for _, raw := range texts {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if p.Pattern.MatchString(compactReplacer.Replace(text)) {
			return text, true
		}
	}
	return "", false
}

// Name implements PhonePicker.
func (p PatternPicker) Name() string { return p.Label }

// FrenchPhone matches national (0X XX XX XX XX) and international (+33 X ...)
// French numbers.
func FrenchPhone() PatternPicker {
	return PatternPicker{
		Label:   "fr",
		Pattern: regexp.MustCompile(`^(?:0|\+33|0033)[1-9]\d{8}$`),
	}
}

// NewPhonePicker returns the picker registered under name.
func NewPhonePicker(name string, minDigits int) (PhonePicker, error) {
	switch name {
	case "", "most-digits":
		return MostDigits{MinDigits: minDigits}, nil
	case "fr":
		return FrenchPhone(), nil
	default:
		return nil, fmt.Errorf("unknown phone policy: %s (use most-digits or fr)", name)
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
