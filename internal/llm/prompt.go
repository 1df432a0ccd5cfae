package llm

import (
	"regexp"
	"strings"
)

const maxPromptChars = 6000

var reKeyPage = regexp.MustCompile(`(?i)(grand\s+total|net\s+(?:amount|payable)|bill\s+summary|final\s+bill|patient\s+name|admission)`)

func buildSystemPrompt() string {
	parts := []string{
		"You are a hospital bill parser for Indian medical claims. Return ONLY JSON that matches the JSON Schema provided.",
		"Amounts are in INR; output them as plain numbers without currency symbols or thousands separators.",
		"Dates keep the format printed on the bill (usually DD/MM/YYYY).",
		"Classify every line item into the schema's type enum; use OTHER when nothing fits.",
		"Populate confidence_scores with a 0..1 score for each field you extracted, keyed by field path (e.g. \"patient.name\", \"total_amount\", \"line_items[0].amount\").",
		"Never output null. If a field is not present on the bill, omit it.",
		"Never invent values: an omitted field is always better than a guessed one.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(ocrText, filename string) string {
	var b strings.Builder
	b.WriteString("Filename: ")
	b.WriteString(filename)
	b.WriteString("\n\nOCR text of the bill:\n")
	b.WriteString(selectKeyText(ocrText, maxPromptChars))
	return b.String()
}

// selectKeyText trims OCR text to the budget while keeping the pages that
// matter. The first page carries the letterhead and patient block; pages with
// totals or summary markers carry the financials. Middle pages of itemized
// pharmacy detail are the first to go.
func selectKeyText(text string, budget int) string {
	if len(text) <= budget {
		return text
	}

	pages := strings.Split(text, "\f")
	if len(pages) == 1 {
		return text[:budget]
	}

	picked := make([]bool, len(pages))
	picked[0] = true
	picked[len(pages)-1] = true
	for i, p := range pages {
		if reKeyPage.MatchString(p) {
			picked[i] = true
		}
	}

	var b strings.Builder
	for i, p := range pages {
		if !picked[i] {
			continue
		}
		if b.Len()+len(p) > budget {
			remain := budget - b.Len()
			if remain > 0 {
				b.WriteString(p[:remain])
			}
			break
		}
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}
