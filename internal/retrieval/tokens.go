package retrieval

import "strings"

// EstimateTokens approximates the token count of a text by its whitespace
// separated words. The estimate is intentionally model-agnostic; it is used
// for budgeting context, not for billing.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// TruncateTokens cuts text down to roughly budget tokens.
func TruncateTokens(text string, budget int) string {
	if budget <= 0 {
		return ""
	}

	fields := strings.Fields(text)
	if len(fields) <= budget {
		return text
	}
	return strings.Join(fields[:budget], " ")
}
