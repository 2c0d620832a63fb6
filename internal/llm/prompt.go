package llm

import (
	"strings"

	"github.com/joseph-ayodele/mining-enricher/constants"
)

// PromptVersion changes whenever the instructions below change in a way
// that should invalidate cached extractions.
const PromptVersion = "mining-v3"

// BuildSystemPrompt composes the system message: field definitions, unit
// conventions and the rule to leave unevidenced fields null.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a mining industry analyst. Extract only factual data from the technical report excerpt.",
		"Return ONLY a JSON object that matches the provided JSON Schema.",
		"If a value is not stated in the excerpt, use null. Never guess, estimate or infer a value that is not written in the text.",

		// units
		"'npv' is the after-tax net present value in millions of US dollars (USD M). Use the base-case discount rate if several are given.",
		"'capex' is the initial (pre-production) capital cost in millions of US dollars.",
		"'opex' is the operating cost per unit of production as a plain number (for example 950 for $950/oz AISC).",
		"'irr' is the after-tax internal rate of return as a percentage number (15.5 for 15.5%), never a fraction.",
		"'mine_life' is the life of mine in years.",
		"Convert amounts stated in billions or thousands to millions. If figures are in another currency and the report gives a USD equivalent, use the USD figure; otherwise use null.",
		"Numbers must be JSON numbers without units, currency symbols or thousands separators.",

		// strings
		"'location' is the country and region (for example 'Nevada, USA').",
		"'commodities' is the list of primary and by-product commodities (for example [\"Copper\", \"Gold\"]).",
		"'stage' is one of: " + strings.Join(constants.Stages(), ", ") + ".",
		"'resource' and 'reserve' are the headline mineral resource and mineral reserve statements in one line (for example '43.7 Mt @ 2.5% Cu').",
		"'description' is one or two neutral sentences describing the project. Avoid promotional language.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the project hints and the excerpt.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if n := strings.TrimSpace(req.ProjectName); n != "" {
		b.WriteString("Project: ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	if c := strings.TrimSpace(req.Company); c != "" {
		b.WriteString("Company: ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	if t := strings.TrimSpace(req.DocumentTitle); t != "" {
		b.WriteString("Document: ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("\nReport excerpt:\n")
	b.WriteString(strings.TrimSpace(req.Excerpt))
	return b.String()
}
