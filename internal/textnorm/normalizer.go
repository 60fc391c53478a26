// Package textnorm turns raw OCR output into displayable, speakable text.
//
// The cleanup strips combining diacritics and later guesses at restoring
// Vietnamese ones from fixed dictionaries. That restoration is best-effort
// and lossy; it lives entirely in PostProcess so it can be reviewed (and
// replaced) in one place.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

// Placeholder substitutes for images where no text survived cleanup.
const Placeholder = "Không có văn bản"

var (
	latinTokenRe    = regexp.MustCompile(`\b[A-Za-z]+\b`)
	disallowedRe    = regexp.MustCompile(`[^a-zA-Z0-9\p{L}\p{N}\p{P}\s]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	spaceDotRe      = regexp.MustCompile(`\s+\.`)
	dotBetweenRe    = regexp.MustCompile(`(\w)\.(\w)`)
	letterSpaceRe   = regexp.MustCompile(`(\p{L})\s+(\p{L})`)
	stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// diacriticPairs is the fixed single-character restoration dictionary,
// applied in this exact order.
var diacriticPairs = []struct{ from, to string }{
	{"a", "à"}, {"e", "è"}, {"i", "ì"}, {"o", "ò"}, {"u", "ù"}, {"y", "ỳ"},
	{"A", "À"}, {"E", "È"}, {"I", "Ì"}, {"O", "Ò"}, {"U", "Ù"}, {"Y", "Ỳ"},
	{"d", "đ"}, {"D", "Đ"},
}

// wordFixes maps common OCR misreads to their intended words, matched
// case-insensitively on word boundaries.
var wordFixes = []struct {
	re *regexp.Regexp
	to string
}{
	{regexp.MustCompile(`(?i)\bnx\b`), "này"},
	{regexp.MustCompile(`(?i)\bieo\b`), "đi"},
	{regexp.MustCompile(`(?i)\btoi\b`), "tôi"},
	{regexp.MustCompile(`(?i)\bden\b`), "đến"},
	{regexp.MustCompile(`(?i)\bdang\b`), "đang"},
	{regexp.MustCompile(`(?i)\bthua\b`), "thưa"},
	{regexp.MustCompile(`(?i)\bngai\b`), "ngài"},
	{regexp.MustCompile(`(?i)\bedo\b`), "đó"},
	{regexp.MustCompile(`(?i)\bday\b`), "đây"},
}

// Clean normalizes raw OCR text: decompose, drop combining marks, recompose,
// strip everything outside letters/numbers/punctuation/whitespace, collapse
// whitespace. It never fails; unusable input yields the placeholder. The
// returned tokens are the Latin-script words seen in the raw text, kept for
// logging only.
func Clean(raw string) (string, []string) {
	if strings.TrimSpace(raw) == "" {
		return Placeholder, nil
	}

	tokens := latinTokenRe.FindAllString(raw, -1)

	cleaned, _, err := transform.String(stripDiacritics, raw)
	if err != nil {
		cleaned = raw
	}
	cleaned = disallowedRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return Placeholder, tokens
	}
	return cleaned, tokens
}

// PostProcess applies the ordered substitution passes that make cleaned text
// speakable: spacing repairs, the diacritic restoration dictionaries, and two
// regex passes that fix period spacing and OCR-introduced letter gaps. The
// letter-gap pass can also delete legitimate spaces; that imprecision is
// inherited from the reference behavior. The placeholder passes through
// unchanged so the spoken fallback stays readable.
func PostProcess(text string) string {
	if strings.TrimSpace(text) == "" || text == Placeholder {
		return Placeholder
	}

	text = strings.ReplaceAll(text, "  ", " ")
	text = spaceDotRe.ReplaceAllString(text, ".")

	for _, p := range diacriticPairs {
		text = strings.ReplaceAll(text, p.from, p.to)
	}
	for _, f := range wordFixes {
		text = f.re.ReplaceAllString(text, f.to)
	}

	text = dotBetweenRe.ReplaceAllString(text, "${1}. ${2}")
	text = letterSpaceRe.ReplaceAllString(text, "${1}${2}")

	return strings.TrimSpace(text)
}

// Normalize runs the full cleanup on one unit of raw OCR text.
func Normalize(raw string) entity.TextUnit {
	cleaned, tokens := Clean(raw)
	return entity.TextUnit{
		Raw:           raw,
		Cleaned:       cleaned,
		Spoken:        PostProcess(cleaned),
		Language:      whatlanggo.DetectLang(cleaned).Iso6391(),
		ForeignTokens: tokens,
	}
}
