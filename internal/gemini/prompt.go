package gemini

import "fmt"

// ComedyAnalysisPrompt is sent with every analysis request.
const ComedyAnalysisPrompt = `Analyze this comedy performance specifically for audience laughter and engagement.
Please provide:
1. A summary of the comedian's style and overall performance.
2. A detailed list of 'Laughter Events'. For every time the audience laughs:
   - Provide the timestamp (e.g., 1:24).
   - Describe the 'setup' or punchline that triggered it.
   - Rate the intensity from 1 (audible breath/smile) to 10 (standing ovation/explosive laughter).
   - Categorize the 'reactionType' (e.g., "Chuckle", "Guffaw", "Roar", "Applause Break").
3. Three deep 'deliveryInsights' regarding timing, stage presence, or joke structure.
4. An 'overallEngagementScore' from 1-100.
5. Identify the 'topPerformingJoke' based on the strongest audience reaction.

Return the response in JSON format.`

func urlAnalysisPrompt(url string) string {
	return fmt.Sprintf(`Perform a deep comedy analysis on this YouTube video: %s.
Use Google Search to find transcripts, audience reviews, and performance breakdowns if needed.

%s`, url, ComedyAnalysisPrompt)
}

func urlContextText(url string) string {
	return "Context: Analyzing video at " + url
}
