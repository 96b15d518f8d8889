package extraction

import (
	"strings"

	"github.com/dvloznov/spendbook/internal/domain"
)

// SystemPrompt is the base instruction sent with every statement.
const SystemPrompt = "You are a financial statement parser.\n\n" +
	"Task:\n" +
	"- Extract ALL transactions from the attached bank statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object of the form {\"transactions\": [...]}.\n\n" +
	"Each transaction object has these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"amount\": number, always positive, in minor currency units (e.g. pence)\n" +
	"- \"type\": \"debit\" for money out, \"credit\" for money in\n" +
	"- \"category\": the id of the best matching entity from the roster below, or omit it\n" +
	"- \"location\": string or omit it\n" +
	"- \"isShared\": boolean, true only if the statement marks the payment as split\n"

// BuildPrompt joins the system prompt, the entity roster and the bank prompt.
func BuildPrompt(entities []*domain.Entity, bankPrompt string) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n")
	b.WriteString(buildRoster(entities))
	if p := strings.TrimSpace(bankPrompt); p != "" {
		b.WriteString("\nBank-specific instructions:\n")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	return b.String()
}

// buildRoster lists every entity as "id | label | category", followed by its
// classification hint when it has one.
func buildRoster(entities []*domain.Entity) string {
	var b strings.Builder
	b.WriteString("Use ONLY the following entities for \"category\" (id | label | category):\n")
	if len(entities) == 0 {
		b.WriteString("  (no entities defined - omit \"category\")\n")
		return b.String()
	}
	for _, e := range entities {
		b.WriteString("  - " + e.ID + " | " + e.Label + " | " + string(e.Category))
		if hint := strings.TrimSpace(e.Prompt); hint != "" && e.Category != domain.CategoryBank {
			b.WriteString(" (" + hint + ")")
		}
		b.WriteString("\n")
	}
	return b.String()
}
