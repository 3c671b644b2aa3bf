// Package classifier tags free text with coarse legal-content signals using
// fixed keyword vocabularies. It never calls out and never fails.
package classifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Content types.
const (
	ContentHearingNotes = "hearing-notes"
	ContentOther        = "other"
)

// Representation tags.
const (
	Unrepresented         = "Unrepresented"
	Represented           = "Represented"
	RepresentationUnknown = "Unknown"
)

const (
	// RuleConfidence is reported whenever legal content is detected. It is a
	// flag for the keyword path, not a per-signal score.
	RuleConfidence = 75

	shortPhrase = 4

	UnknownClaimType  = "Unknown"
	UnknownApplicant  = "Unknown Applicant"
	UnknownRespondent = "Unknown Respondent"
	CaseReviewNeeded  = "Case Review Needed"
)

var (
	applicantLine  = regexp.MustCompile(`(?im)^[ \t]*(?:APPLICANT(?:\s+NAME)?|INJURED\s+WORKER)[ \t]*:[ \t]*(.+)$`)
	respondentLine = regexp.MustCompile(`(?im)^[ \t]*(?:RESPONDENT|DEFENDANT|EMPLOYER)S?(?:\(S\))?[ \t]*:[ \t]*(.+)$`)
	caseNumberLine = regexp.MustCompile(`(?im)^[ \t]*CASE\s+(?:NUMBERS?|NOS?\.?)(?:\(S\))?[ \t]*:[ \t]*([^,\n]+)`)
	adjNumber      = regexp.MustCompile(`(?i)\bADJ\d{5,}\b`)
	columnGap      = regexp.MustCompile(`\t|[ \t]{2,}`)
)

// Info holds the best-effort details pulled out alongside the tags.
type Info struct {
	ApplicantName        string   `json:"applicant_name"`
	RespondentName       string   `json:"respondent_name"`
	CaseNumber           string   `json:"case_number,omitempty"`
	ClaimType            string   `json:"claim_type"`
	KeyIssues            []string `json:"key_issues"`
	RepresentationStatus string   `json:"representation_status"`
}

// Result is the outcome of classifying one piece of text.
type Result struct {
	DetectedLegalContent bool   `json:"detected_legal_content"`
	ContentType          string `json:"content_type"`
	Confidence           int    `json:"confidence"`
	ExtractedInfo        Info   `json:"extracted_info"`
}

// Classify runs every vocabulary over text. The same input always yields the same Result.
func Classify(text string) Result {
	lower := strings.ToLower(text)

	claim := firstTag(lower, claimTypes)
	issues := allTags(lower, keyIssues)

	detected := claim != "" || len(issues) > 0 || containsAny(lower, legalSignals)

	if claim == "" {
		claim = UnknownClaimType
	}
	if len(issues) == 0 {
		issues = []string{CaseReviewNeeded}
	}

	res := Result{
		DetectedLegalContent: detected,
		ContentType:          ContentOther,
		ExtractedInfo: Info{
			ApplicantName:        firstCapture(applicantLine, text, UnknownApplicant),
			RespondentName:       firstCapture(respondentLine, text, UnknownRespondent),
			CaseNumber:           caseNumber(text),
			ClaimType:            claim,
			KeyIssues:            issues,
			RepresentationStatus: representation(lower),
		},
	}
	if detected {
		res.ContentType = ContentHearingNotes
		res.Confidence = RuleConfidence
	}
	return res
}

func firstTag(lower string, vocab []vocabEntry) string {
	for _, e := range vocab {
		if containsAny(lower, e.Phrases) {
			return e.Tag
		}
	}
	return ""
}

func allTags(lower string, vocab []vocabEntry) []string {
	var tags []string
	for _, e := range vocab {
		if containsAny(lower, e.Phrases) {
			tags = append(tags, e.Tag)
		}
	}
	return tags
}

func representation(lower string) string {
	switch {
	case containsAny(lower, unrepresentedPhrases):
		return Unrepresented
	case containsAny(lower, representedPhrases):
		return Represented
	default:
		return RepresentationUnknown
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(s, p) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether p occurs in s starting at a word boundary.
// Phrases of shortPhrase runes or fewer ("qme", "esq") must also end at one.
func containsPhrase(s, p string) bool {
	whole := utf8.RuneCountInString(p) <= shortPhrase
	for from := 0; from <= len(s); {
		i := strings.Index(s[from:], p)
		if i < 0 {
			return false
		}
		i += from
		if wordBoundary(s, i) && (!whole || wordBoundary(s, i+len(p))) {
			return true
		}
		from = i + 1
	}
	return false
}

// wordBoundary reports whether offset i in s does not sit between two word runes.
func wordBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	before, _ := utf8.DecodeLastRuneInString(s[:i])
	after, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(before) || !isWordRune(after)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// firstCapture returns the labeled value, cut at a column gap so a second
// label on the same line is not swallowed.
func firstCapture(re *regexp.Regexp, text, fallback string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	v := m[1]
	if loc := columnGap.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func caseNumber(text string) string {
	if m := caseNumberLine.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v
		}
	}
	return strings.ToUpper(adjNumber.FindString(text))
}
