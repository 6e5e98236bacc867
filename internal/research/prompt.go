// Package research builds the Gemini prompts used by the news pipeline and
// the on-demand market research endpoint, and parses the JSON they return.
package research

import (
	"fmt"
	"strings"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// NewsSources is the allowlist of Indian financial news sites the combined
// search-and-analyze prompt is scoped to.
var NewsSources = []string{
	"site:moneycontrol.com",
	"site:economictimes.indiatimes.com",
	"site:livemint.com",
	"site:business-standard.com",
	"site:financialexpress.com",
	"site:thehindubusinessline.com",
}

// PromptMaxArticles caps how many articles the model is asked to return.
// The hard cap enforced by the parser is models.MaxArticles.
const PromptMaxArticles = 30

// NewsPrompt builds the combined search-plus-analysis prompt. A single call
// produces searched, summarized, and sentiment-labeled articles.
func NewsPrompt(windowMinutes int) string {
	var quoted []string
	for _, src := range NewsSources {
		quoted = append(quoted, fmt.Sprintf("%q", src))
	}

	return fmt.Sprintf(`TASK: Find and analyze recent Indian stock market news articles in a single operation.

STEP 1 - SEARCH: Find recent articles published in the last %d minutes from these sources:
%s

Focus on articles about:
- Stock market news and analysis
- Company earnings and quarterly results
- Economic indicators and policy changes
- Sector-specific news (banking, IT, pharma, auto, FMCG, energy)
- Corporate announcements and mergers
- Market trends and predictions
- IPOs and new listings

STEP 2 - ANALYSIS: For each article found:
1. Extract the headline and identify the news source
2. Read the full article content
3. Write a concise 1-2 sentence summary highlighting key financial or economic impact
4. Determine sentiment: "Positive" (bullish), "Negative" (bearish), or "Neutral" (mixed or no clear impact)
5. Extract relevant Indian stock ticker symbols in UPPERCASE (e.g., ["RELIANCE", "TCS", "HDFCBANK"])
6. Identify relevant sectors from: %s

OUTPUT FORMAT: Return ONLY a valid JSON object with this exact structure:
{
  "articles": [
    {
      "headline": "Article headline here",
      "source": "Source name (e.g., Moneycontrol, The Economic Times)",
      "url": "https://article-url.com",
      "summary": "Concise 1-2 sentence summary of key impact",
      "sentiment": "Positive" | "Negative" | "Neutral",
      "tickers": ["RELIANCE", "TCS"],
      "sectors": ["Energy", "IT"]
    }
  ]
}

REQUIREMENTS:
- Return ONLY JSON, no additional text
- Maximum %d articles
- Ensure all required fields are present
- Use exact sentiment values: "Positive", "Negative", or "Neutral"
- Ticker symbols must be in UPPERCASE
- Sectors must be from the predefined list
- Skip duplicate articles if found`,
		windowMinutes,
		strings.Join(quoted, " OR "),
		strings.Join(models.Sectors, ", "),
		PromptMaxArticles,
	)
}

// BriefPrompt builds the research-brief prompt for a user question.
func BriefPrompt(question string) string {
	return fmt.Sprintf(`ROLE: You are a professional Indian equity market research analyst.
AUDIENCE: Sophisticated investors and financial professionals.
SCOPE: Use web search grounding to find the latest credible news, filings, and data from top Indian sources.
SOURCES: moneycontrol.com, economictimes.indiatimes.com, livemint.com, business-standard.com, nseindia.com, sebi.gov.in, bseindia.com.
GEOGRAPHY: India markets only.

TASK: Analyze the following market research query and produce a concise, executive-grade brief with citations.
QUERY: %q

OUTPUT: Return ONLY a valid JSON object with the exact shape below:
{
  "executiveSummary": "2-4 sentence overview with clear conclusion",
  "keyFindings": [
    { "title": "finding title", "detail": "1-3 sentence detail", "impact": "Positive|Negative|Neutral" }
  ],
  "relatedTickers": ["RELIANCE", "TCS"],
  "sectors": ["IT", "Banking"],
  "riskFactors": ["key risk 1", "key risk 2"],
  "sources": [
    { "name": "Moneycontrol", "url": "https://..." }
  ]
}

REQUIREMENTS:
- Prefer authoritative Indian sources.
- Use exact ticker symbols in UPPERCASE if mentioned; otherwise omit.
- Limit keyFindings to 3-6 high-signal items; include impact.
- Include at least 3 credible sources with direct URLs.
- Keep strictly to the JSON format. No markdown, no prose outside JSON.`, question)
}
