// Package prompts builds the model prompts for each pipeline stage.
package prompts

import (
	"fmt"
	"strings"
)

const intentSystem = `You are an intent classifier for a database assistant.`

const intentTemplate = `Classify the user's query into exactly one of these intents:
- DATA: questions requiring database queries over the available data
- GENERAL: greetings, chitchat, thanks, questions not answerable from the data

Conversation history (most recent turns):
%s

Current user query: %s

Respond in JSON format:
{
  "intent": "DATA" | "GENERAL",
  "confidence": 0.0 to 1.0,
  "reasoning": "brief explanation",
  "follow_up_question": "clarifying question to ask when unsure, else null",
  "detected_entities": ["key entities such as names, identifiers, dates"]
}`

// IntentClassification builds the stage-two classification prompt.
func IntentClassification(question, history string) (prompt, system string) {
	if history == "" {
		history = "(none)"
	}
	return fmt.Sprintf(intentTemplate, history, question), intentSystem
}

const rewriteTemplate = `You are a query rewriter. Your job is to rewrite follow-up questions into standalone questions.

Conversation history:
%s

Current follow-up question: %s

Rewrite this into a complete, standalone question that includes all necessary context from the conversation.
Only output the rewritten question, nothing else.`

// Rewrite builds the follow-up resolution prompt.
func Rewrite(question, history string) string {
	return fmt.Sprintf(rewriteTemplate, history, question)
}

const generationSystem = `You are a SQL expert. Generate SQLite SELECT queries only.`

const generationTemplate = `Generate a SQLite SELECT query to answer the user's question.

IMPORTANT DATABASE INFORMATION:
- Multiple databases are attached together under fixed aliases. The schemas below show which databases and tables are available.
- You MUST ALWAYS prefix table names with the database alias: db_alias.table_name
- Cross-database JOINs are fully supported. Join across databases freely via shared key columns such as employee_id.

Available schemas and tables:
%s
%s
RULES:
1. Only generate SELECT statements. No INSERT, UPDATE, DELETE, DROP or any other statement type.
2. ALWAYS use db_alias.table_name syntax.
3. ALWAYS end the query with LIMIT %d unless the user asks for fewer rows.
4. Use meaningful column aliases for readability.
5. For date comparisons use SQLite date functions: date(), datetime(), strftime().
6. Use LIKE with %% for partial text matching and handle NULL values appropriately.
7. Do NOT invent table or column names. Only use tables and columns from the schemas above.
8. When the question is about people, include name columns if the schemas provide them.

User question: %s

Respond with ONLY the SQL query. No explanations, no markdown, just the raw SQL.`

// SQLGeneration builds the first-attempt generation prompt.
func SQLGeneration(question, schemaText, fewShot string, rowLimit int) (prompt, system string) {
	fewShotSection := ""
	if fewShot != "" {
		fewShotSection = "\nEXAMPLES:\n" + fewShot + "\n"
	}
	return fmt.Sprintf(generationTemplate, schemaText, fewShotSection, rowLimit, question), generationSystem
}

const correctionTemplate = `The following SQL query failed. Please fix it.

Original question: %s

Failed SQL:
%s

Error message: %s

Available schemas:
%s

IMPORTANT RULES FOR CORRECTION:
1. ALWAYS prefix table names with the database alias (db_alias.table_name).
2. If the error mentions "no such table", check the alias and table name against the schemas above.
3. If the error mentions "no such column", check the schemas above for exact column names.
4. Cross-database JOINs are supported via shared key columns.
5. The corrected query must be a single SELECT ending with LIMIT %d unless a smaller limit fits the question.

Generate a corrected SQL query that will work.
Only output the corrected SQL, no explanations.`

// SQLCorrection builds the retry prompt fed with the previous failure.
func SQLCorrection(question, failedSQL, errorMessage, schemaText string, rowLimit int) (prompt, system string) {
	return fmt.Sprintf(correctionTemplate, question, failedSQL, errorMessage, schemaText, rowLimit), generationSystem
}

// SuggestionPrefix marks follow-up suggestion lines in summarizer output.
const SuggestionPrefix = "SUGGESTION:"

const summarySystem = `You are a helpful assistant summarizing database query results.`

const summaryTemplate = `User's original question: %s

SQL query executed:
%s

Query results (as JSON%s):
%s

Number of rows returned: %d
%s
SUMMARY RULES:
1. ANSWER THE USER'S QUESTION DIRECTLY. If they asked "who", list the names; "how many", give the count; "why", give the reasons.
2. CONSOLIDATE REPETITIVE DATA. Group repeated entries by reason, status or category and present a breakdown instead of listing every row.
3. Format dates, times and numbers nicely.
4. Use bullet points or numbered lists when it helps readability.
5. Keep the summary concise but complete: 2-5 sentences plus a breakdown if needed.

FOLLOW-UP SUGGESTIONS:
After your summary, add exactly 3 follow-up questions the user might want to ask next, each on its own line at the very end, prefixed with "SUGGESTION:".`

// ResultSummary builds the summarization prompt. shownRows is the number of
// rows included in resultsJSON, which may be fewer than rowCount.
func ResultSummary(question, sqlText, resultsJSON string, rowCount, shownRows int, truncated bool) (prompt, system string) {
	subsetNote := ""
	if shownRows < rowCount {
		subsetNote = fmt.Sprintf(", showing first %d of %d rows", shownRows, rowCount)
	}
	truncNote := ""
	if truncated {
		truncNote = "\nNOTE: the result set was capped by the execution row limit. Say the results show a subset, not the complete answer.\n"
	}
	return fmt.Sprintf(summaryTemplate, question, sqlText, subsetNote, resultsJSON, rowCount, truncNote), summarySystem
}

const generalTemplate = `You are a friendly assistant for a database query service.

Conversation history:
%s

User message: %s

Respond naturally and helpfully. If they seem to be asking about data, suggest they ask a specific question about the records available.
Keep responses brief and professional.`

// GeneralChat builds the non-data small-talk prompt.
func GeneralChat(question, history string) string {
	if history == "" {
		history = "(none)"
	}
	return fmt.Sprintf(generalTemplate, history, question)
}

const clarificationTemplate = `The user's question is ambiguous. Generate a clarifying question.

User's question: %s

Generate a brief, friendly clarifying question to determine what data they want to look up.

Clarifying question:`

// Clarification builds the disambiguation prompt.
func Clarification(question string) string {
	return fmt.Sprintf(clarificationTemplate, question)
}

// ParseSuggestions splits a summarizer response into the summary text and
// the trailing SUGGESTION: lines, capped at max.
func ParseSuggestions(response string, max int) (summary string, suggestions []string) {
	var kept []string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, SuggestionPrefix) {
			s := strings.TrimSpace(strings.TrimPrefix(trimmed, SuggestionPrefix))
			if s != "" && len(suggestions) < max {
				suggestions = append(suggestions, s)
			}
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), suggestions
}
