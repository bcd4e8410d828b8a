package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jsonList renders items as an indented JSON array for prompt embedding.
func jsonList(items []string) string {
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		// Strings always marshal; keep the prompt builders infallible.
		return "[]"
	}
	return string(data)
}

// stylingSection renders the optional styling constraints for input
// generation prompts. Empty when no styling is configured.
func stylingSection(styling StylingConfig) string {
	var sb strings.Builder
	if styling.Scenario != "" {
		fmt.Fprintf(&sb, "Scenario of the input: %s\n", styling.Scenario)
	}
	if styling.Task != "" {
		fmt.Fprintf(&sb, "Task the evaluated system performs: %s\n", styling.Task)
	}
	if styling.InputFormat != "" {
		fmt.Fprintf(&sb, "Format of the input: %s\n", styling.InputFormat)
	}
	return sb.String()
}

// contextQualityPrompt asks the critic to score a candidate context.
func contextQualityPrompt(context []string) string {
	return fmt.Sprintf(`Given the context, which is a list of text segments retrieved from a single document, evaluate whether the context forms a good basis for generating an evaluation input. Judge whether the segments are self-explanatory, informative, and coherent with each other.
Assign a score between 0 and 1, where 1 is a flawless context and 0 is an unusable one.

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "score" key mapping to a number between 0 and 1 and the "reason" key mapping to a string. No words or explanation are needed. Repair any invalid JSON before you output it.

Example JSON:
{
    "score": 0.7,
    "reason": "The segments are informative but the third one is unrelated to the first two."
}
===== END OF EXAMPLE ======
**

Context:
%s

JSON:
`, jsonList(context))
}

// inputPrompt asks the model to generate one input grounded in context.
func inputPrompt(context []string, styling StylingConfig) string {
	return fmt.Sprintf(`Given the context, which is a list of text segments from a single document, generate one input that can be fully addressed using only the provided context. The input should look like something a real user would ask, and must not mention the context or the document directly.
%s
**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "input" key mapping to a string. No words or explanation are needed. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example JSON:
{
    "input": "What security features does the new laptop include?"
}
===== END OF EXAMPLE ======
**

Context:
%s

JSON:
`, stylingSection(styling), jsonList(context))
}

// evolvePrompt asks the model to rewrite an input per the evolution
// directive. context may be nil for from-scratch inputs.
func evolvePrompt(input string, context []string, evo Evolution) string {
	directive := evolutionDirectives[evo]

	grounding := "The rewritten input must stay on the same topic."
	contextSection := ""
	if len(context) > 0 {
		grounding = "The rewritten input must remain answerable using only the provided context, and must not mention the context or the document directly."
		contextSection = fmt.Sprintf("\nContext:\n%s\n", jsonList(context))
	}

	return fmt.Sprintf(`Rewrite the given input so that it %s. Keep the rewritten input to at most two sentences. %s

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "input" key mapping to the rewritten input as a string. No words or explanation are needed. Repair any invalid JSON before you output it.

Example JSON:
{
    "input": "If the battery drains within 6 hours, which advertised feature failed?"
}
===== END OF EXAMPLE ======
**

Input:
%s
%s
JSON:
`, directive, grounding, input, contextSection)
}

// inputQualityPrompt asks the critic to score a final input.
func inputQualityPrompt(input string) string {
	return fmt.Sprintf(`Given the input, which may be a question or a task for an AI system, evaluate whether it is clear, self-contained, and answerable without further clarification.
Assign a score between 0 and 1, where 1 is a flawless input and 0 is an unusable one.

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "score" key mapping to a number between 0 and 1 and the "reason" key mapping to a string. No words or explanation are needed. Repair any invalid JSON before you output it.

Example JSON:
{
    "score": 0.4,
    "reason": "The input refers to 'the second option' without stating the options, so it is not self-contained."
}
===== END OF EXAMPLE ======
**

Input:
%s

JSON:
`, input)
}

// expectedOutputPrompt asks the model for the ideal answer to input, using
// only the context when one exists.
func expectedOutputPrompt(input string, context []string, styling StylingConfig) string {
	grounding := "Answer from general knowledge, staying concise and factual."
	contextSection := ""
	if len(context) > 0 {
		grounding = "Use ONLY information present in the context. Do not add outside knowledge. If the context is insufficient, answer with what the context supports."
		contextSection = fmt.Sprintf("\nContext:\n%s\n", jsonList(context))
	}

	format := ""
	if styling.ExpectedOutputFormat != "" {
		format = fmt.Sprintf("Format of the expected output: %s\n", styling.ExpectedOutputFormat)
	}

	return fmt.Sprintf(`Given the input, generate the ideal expected answer. %s
%s
**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "expected_output" key mapping to the answer as a string. No words or explanation are needed. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example JSON:
{
    "expected_output": "The laptop includes fingerprint authentication and an encrypted SSD."
}
===== END OF EXAMPLE ======
**

Input:
%s
%s
JSON:
`, grounding, format, input, contextSection)
}

// scratchPrompt asks the model for count standalone inputs driven purely by
// the styling configuration.
func scratchPrompt(count int, styling StylingConfig) string {
	return fmt.Sprintf(`Generate a list of exactly %d inputs for evaluating an AI system. Each input should look like something a real user would ask, and the inputs should differ from each other in topic and phrasing.
%s
**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "inputs" key mapping to a list of exactly %d strings. No words or explanation are needed. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example JSON:
{
    "inputs": [
        "What does the error 'connection refused' mean when deploying?",
        "How do I rotate credentials without downtime?"
    ]
}
===== END OF EXAMPLE ======
**

JSON:
`, count, stylingSection(styling), count)
}
