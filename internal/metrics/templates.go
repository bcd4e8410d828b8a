package metrics

import (
	"encoding/json"
	"fmt"
)

// jsonBlock renders v as indented JSON for prompt embedding.
func jsonBlock(v any) string {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// statementsPrompt extracts the discrete statements made in a text.
func statementsPrompt(text string) string {
	return fmt.Sprintf(`Given the text, breakdown and generate a list of statements presented. Ambiguous statements and single words can be considered as statements, but only if outside of a coherent statement.

Example:
Example text:
The starter plan includes 5 projects and community support. Upgrading unlocks unlimited projects, priority support with a 4-hour response time, and an audit log. All plans come with a 30-day refund window.

{
    "statements": [
        "The starter plan includes 5 projects.",
        "The starter plan includes community support.",
        "Upgrading unlocks unlimited projects.",
        "Upgrading unlocks priority support with a 4-hour response time.",
        "Upgrading unlocks an audit log.",
        "All plans come with a 30-day refund window."
    ]
}
===== END OF EXAMPLE ======

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the "statements" key mapping to a list of strings. No words or explanation are needed. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.
**

Text:
%s

JSON:
`, text)
}

// relevancyVerdictsPrompt judges each statement's relevance to the input.
func relevancyVerdictsPrompt(input string, statements []string) string {
	return fmt.Sprintf(`For the provided list of statements, determine whether each statement is relevant to address the input.
Please generate a list of JSON with two keys: `+"`verdict` and `reason`"+`.
The 'verdict' key should STRICTLY be either a 'yes', 'idk' or 'no'. Answer 'yes' if the statement is relevant to addressing the original input, 'no' if the statement is irrelevant, and 'idk' if it is ambiguous (eg., not directly relevant but could be used as a supporting point to address the input).
The 'reason' is the reason for the verdict.
Provide a 'reason' ONLY if the answer is 'no'.
The provided statements are statements made in the actual output.

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the 'verdicts' key mapping to a list of JSON objects. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.
Example input:
What does the paid plan add?

Example statements:
[
    "Upgrading unlocks unlimited projects.",
    "Priority support responds within 4 hours.",
    "All plans come with a 30-day refund window.",
    "Our office dog is named Biscuit."
]

Example JSON:
{
    "verdicts": [
        {
            "verdict": "yes"
        },
        {
            "verdict": "yes"
        },
        {
            "verdict": "idk"
        },
        {
            "verdict": "no",
            "reason": "The office dog's name has nothing to do with what the paid plan adds."
        }
    ]
}
===== END OF EXAMPLE ======

Since you are going to generate a verdict for each statement, the number of 'verdicts' SHOULD BE STRICTLY EQUAL to the number of 'statements'.
**

Input:
%s

Statements:
%s

JSON:
`, input, jsonBlock(statements))
}

// relevancyReasonPrompt summarizes why the answer relevancy score is what
// it is.
func relevancyReasonPrompt(irrelevantReasons []string, input, score string) string {
	return fmt.Sprintf(`Given the answer relevancy score, the list of reasons of irrelevant statements made in the actual output, and the input, provide a CONCISE reason for the score. Explain why it is not higher, but also why it is at its current score.
The irrelevant statements represent things in the actual output that is irrelevant to addressing whatever is asked/talked about in the input.
If there is nothing irrelevant, just say something positive with an upbeat encouraging tone (but don't overdo it otherwise it gets annoying).

**
IMPORTANT: Please make sure to only return in JSON format, with the 'reason' key providing the reason. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example:
Example JSON:
{
    "reason": "The score is <answer_relevancy_score> because <your_reason>."
}
===== END OF EXAMPLE ======
**

Answer Relevancy Score:
%s

Reasons why the score can't be higher based on irrelevant statements in the actual output:
%s

Input:
%s

JSON:
`, score, jsonBlock(irrelevantReasons), input)
}

// precisionVerdictsPrompt judges, node by node, whether each retrieval
// context was useful in arriving at the expected output.
func precisionVerdictsPrompt(input, expectedOutput string, retrievalContext []string) string {
	return fmt.Sprintf(`Given the input, the expected output, and the retrieval contexts (presented in their ranked order), determine for EACH node of retrieval contexts whether it was remotely useful in arriving at the expected output.
Please generate a list of JSON with two keys: `+"`verdict` and `reason`"+`.
The 'verdict' key should STRICTLY be either a 'yes' or 'no'. Answer 'yes' if the node was useful in arriving at the expected output, 'no' otherwise.
The 'reason' is REQUIRED for every verdict: quote the part of the node that supports your verdict.

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the 'verdicts' key mapping to a list of JSON objects. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.
Example input:
How long is the refund window?

Example expected output:
Refunds are available for 30 days after purchase.

Example retrieval contexts:
[
    "All plans come with a 30-day refund window after the purchase date.",
    "Our office dog is named Biscuit."
]

Example JSON:
{
    "verdicts": [
        {
            "verdict": "yes",
            "reason": "The node states 'a 30-day refund window after the purchase date', which directly supports the expected output."
        },
        {
            "verdict": "no",
            "reason": "The office dog's name is unrelated to refunds."
        }
    ]
}
===== END OF EXAMPLE ======

Since you are going to generate a verdict for each node, the number of 'verdicts' SHOULD BE STRICTLY EQUAL to the number of nodes in the retrieval contexts.
**

Input:
%s

Expected output:
%s

Retrieval contexts:
%s

JSON:
`, input, expectedOutput, jsonBlock(retrievalContext))
}

// rankedVerdict pairs a node's rank with its verdict for reason prompts.
type rankedVerdict struct {
	Rank    int    `json:"rank"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason,omitempty"`
}

// precisionReasonPrompt summarizes the contextual precision score, which
// rewards ranking relevant nodes above irrelevant ones.
func precisionReasonPrompt(input string, verdicts []rankedVerdict, score string) string {
	return fmt.Sprintf(`Given the contextual precision score, the input, and the ranked list of node verdicts (each stating whether the retrieval context node at that rank was useful), provide a CONCISE reason for the score. Explain why it is not higher, but also why it is at its current score.
Contextual precision rewards rankings that place useful nodes above useless ones, so mention ranking order when it affected the score.

**
IMPORTANT: Please make sure to only return in JSON format, with the 'reason' key providing the reason. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example:
Example JSON:
{
    "reason": "The score is <contextual_precision_score> because <your_reason>."
}
===== END OF EXAMPLE ======
**

Contextual Precision Score:
%s

Input:
%s

Ranked verdicts:
%s

JSON:
`, score, input, jsonBlock(verdicts))
}

// recallVerdictsPrompt judges, sentence by sentence, whether the expected
// output can be attributed to the retrieval contexts.
func recallVerdictsPrompt(expectedOutput string, retrievalContext []string) string {
	return fmt.Sprintf(`For EACH sentence in the given expected output below, determine whether the sentence can be attributed to the nodes of retrieval contexts.
Please generate a list of JSON with two keys: `+"`verdict` and `reason`"+`.
The 'verdict' key should STRICTLY be either a 'yes' or 'no'. Answer 'yes' if the sentence can be attributed to any parts of the retrieval contexts, 'no' otherwise.
The 'reason' is REQUIRED for every verdict: name the node (by its position) that supports the sentence, or state that nothing does.

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the 'verdicts' key mapping to a list of JSON objects. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.
Example expected output:
Refunds are available for 30 days. Support answers within 4 hours.

Example retrieval contexts:
[
    "All plans come with a 30-day refund window after the purchase date."
]

Example JSON:
{
    "verdicts": [
        {
            "verdict": "yes",
            "reason": "The 1st node states the 30-day refund window."
        },
        {
            "verdict": "no",
            "reason": "No node mentions support response times."
        }
    ]
}
===== END OF EXAMPLE ======

Since you are going to generate a verdict for each sentence, the number of 'verdicts' SHOULD BE STRICTLY EQUAL to the number of sentences in the expected output.
**

Expected output:
%s

Retrieval contexts:
%s

JSON:
`, expectedOutput, jsonBlock(retrievalContext))
}

// recallReasonPrompt summarizes the contextual recall score.
func recallReasonPrompt(expectedOutput string, supportive, unsupportive []string, score string) string {
	return fmt.Sprintf(`Given the contextual recall score, the expected output, the list of supportive reasons (sentences attributable to the retrieval context), and the list of unsupportive reasons (sentences the retrieval context cannot back), provide a CONCISE reason for the score. Explain why it is not higher, but also why it is at its current score.

**
IMPORTANT: Please make sure to only return in JSON format, with the 'reason' key providing the reason. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example:
Example JSON:
{
    "reason": "The score is <contextual_recall_score> because <your_reason>."
}
===== END OF EXAMPLE ======
**

Contextual Recall Score:
%s

Expected output:
%s

Supportive reasons:
%s

Unsupportive reasons:
%s

JSON:
`, score, expectedOutput, jsonBlock(supportive), jsonBlock(unsupportive))
}

// nodeStatementsPrompt extracts statements from one retrieval context node
// and judges each statement's relevance to the input.
func nodeStatementsPrompt(input, contextNode string) string {
	return fmt.Sprintf(`Based on the input and context, please generate a list of JSON objects to indicate whether each statement found in the context is relevant to the provided input.
Please generate a list of JSON with three keys: `+"`statement`, `verdict`, and `reason`"+`.
The 'statement' is a statement found in the context.
The 'verdict' key should STRICTLY be either a 'yes' or 'no'. Answer 'yes' if the statement is relevant to the input, 'no' otherwise.
Provide a 'reason' ONLY if the answer is 'no'.

**
IMPORTANT: Please make sure to only return in valid and parseable JSON format, with the 'verdicts' key mapping to a list of JSON objects. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.
Example input:
How long is the refund window?

Example context:
All plans come with a 30-day refund window. Our office dog is named Biscuit.

Example JSON:
{
    "verdicts": [
        {
            "statement": "All plans come with a 30-day refund window.",
            "verdict": "yes"
        },
        {
            "statement": "The office dog is named Biscuit.",
            "verdict": "no",
            "reason": "The office dog's name is unrelated to the refund window."
        }
    ]
}
===== END OF EXAMPLE ======
**

Input:
%s

Context:
%s

JSON:
`, input, contextNode)
}

// contextualRelevancyReasonPrompt summarizes the contextual relevancy
// score.
func contextualRelevancyReasonPrompt(input string, irrelevancies, relevant []string, score string) string {
	return fmt.Sprintf(`Given the contextual relevancy score, the input, the list of reasons why statements in the retrieval context are irrelevant to the input, and the list of relevant statements, provide a CONCISE reason for the score. Explain why it is not higher, but also why it is at its current score.

**
IMPORTANT: Please make sure to only return in JSON format, with the 'reason' key providing the reason. Ensure all strings are closed appropriately. Repair any invalid JSON before you output it.

Example:
Example JSON:
{
    "reason": "The score is <contextual_relevancy_score> because <your_reason>."
}
===== END OF EXAMPLE ======
**

Contextual Relevancy Score:
%s

Reasons for irrelevance:
%s

Relevant statements:
%s

Input:
%s

JSON:
`, score, jsonBlock(irrelevancies), jsonBlock(relevant), input)
}
