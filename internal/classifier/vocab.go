package classifier

// vocabEntry maps a tag to the phrases that signal it. Phrases are lowercase
// and matched in the lowercased text from the start of a word.
type vocabEntry struct {
	Tag     string
	Phrases []string
}

// claimTypes is checked in order; the first entry with any matching phrase wins.
// Workers' comp phrasing must come before the generic disability entry.
var claimTypes = []vocabEntry{
	{Tag: "Workers Compensation", Phrases: []string{
		"workers' compensation", "workers’ compensation", "workers compensation",
		"worker's compensation", "workers comp", "wcab", "industrial injury",
	}},
	{Tag: "Social Security Disability", Phrases: []string{
		"social security disability", "ssdi", "supplemental security income",
	}},
	{Tag: "Personal Injury", Phrases: []string{
		"personal injury", "auto accident", "slip and fall", "premises liability",
	}},
	{Tag: "Employment", Phrases: []string{
		"wrongful termination", "employment discrimination", "workplace harassment", "retaliation",
	}},
	{Tag: "Disability", Phrases: []string{
		"disability", "disabled",
	}},
}

// keyIssues is scanned in full; every entry with a matching phrase is reported in table order.
var keyIssues = []vocabEntry{
	{Tag: "Temporary Disability", Phrases: []string{
		"temporary disability", "temporary total disability", "td benefits",
	}},
	{Tag: "Permanent Disability", Phrases: []string{
		"permanent disability", "permanent and stationary", "pd rating",
	}},
	{Tag: "Medical Treatment", Phrases: []string{
		"medical treatment", "treating physician", "future medical",
	}},
	{Tag: "Utilization Review", Phrases: []string{
		"utilization review", "independent medical review",
	}},
	{Tag: "Medical-Legal Evaluation", Phrases: []string{
		"qualified medical evaluator", "agreed medical evaluator", "qme", "medical-legal",
	}},
	{Tag: "Penalties", Phrases: []string{
		"penalty", "penalties",
	}},
	{Tag: "Settlement", Phrases: []string{
		"settlement", "compromise and release", "stipulations with request for award",
	}},
	{Tag: "Attorney Fees", Phrases: []string{
		"attorney fee", "attorney's fee", "attorneys' fee",
	}},
	{Tag: "Lien", Phrases: []string{
		"lien claim", "lien conference", "lien claimant",
	}},
	{Tag: "Wage Loss", Phrases: []string{
		"wage loss", "lost wages", "average weekly wage",
	}},
	{Tag: "Statute of Limitations", Phrases: []string{
		"statute of limitations",
	}},
	{Tag: "Discovery", Phrases: []string{
		"discovery", "deposition", "subpoena",
	}},
	{Tag: "Return to Work", Phrases: []string{
		"return to work", "supplemental job displacement",
	}},
}

var unrepresentedPhrases = []string{
	"unrepresented", "pro se", "pro per", "in propria persona", "self-represented",
}

var representedPhrases = []string{
	"attorney", "counsel", "law office", "law firm", "esq", "represented by",
}

// legalSignals mark text as legal content even when no claim or issue tag fires.
var legalSignals = []string{
	"hearing", "applicant", "case number", "case no", "court", "judge",
	"defendant", "respondent", "petition", "appeals board",
}
