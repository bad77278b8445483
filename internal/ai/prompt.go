package ai

import (
	"fmt"

	"careercraft/internal/database"
)

const promptHeader = `You are an expert resume reviewer and career coach.
Analyze the resume text provided below.

%s

Return your result as a single structured JSON object in this format:

{
  "overall_score": number,
  "strengths": [string],
  "weaknesses": [string],
  "suggestions": [string],
  "keywords": [string]
}

"overall_score" is between 0 and 100. Base all reasoning only on the provided
text; do not invent experience that is not explicitly mentioned.
Return only valid JSON. Do not include explanations, markdown, or text before
or after the JSON.

Resume text:
---
%s
---`

var typeInstructions = map[string]string{
	database.AnalysisTypeComprehensive: `Evaluate the resume as a whole: content, structure,
impact of the experience descriptions, and overall readiness for job applications.`,
	database.AnalysisTypeATSScan: `Evaluate how well this resume would pass automated
applicant tracking systems (ATS): parseable structure, standard section headings,
and keyword coverage for the roles the resume targets. Score reflects ATS
compatibility.`,
	database.AnalysisTypeGrammarCheck: `Focus exclusively on writing quality: grammar,
spelling, punctuation, tense consistency, and phrasing. List concrete problems as
weaknesses and corrected phrasings as suggestions.`,
	database.AnalysisTypeKeywordOptimization: `Focus on keywords: identify the role-relevant
keywords already present (as keywords), the important ones that are missing (as
weaknesses), and how to work them in naturally (as suggestions).`,
	database.AnalysisTypeFormatReview: `Focus on formatting and layout as inferred from the
text: section ordering, bullet consistency, length, and scannability.`,
}

// Prompt builds the model prompt for one analysis type.
func Prompt(analysisType, resumeText string) string {
	instruction, ok := typeInstructions[analysisType]
	if !ok {
		instruction = typeInstructions[database.AnalysisTypeComprehensive]
	}
	return fmt.Sprintf(promptHeader, instruction, resumeText)
}
