package analysis

import "fmt"

// systemInstruction fixa o papel do modelo e o formato estrito da resposta.
const systemInstruction = `You are Codalyzer, an expert code complexity analyzer. Provide strictly structured outputs.
- Statically analyze the code algorithms as well as semantic and logical flows to detect complexities and issues.
- Rate complexity relative to the algorithm being implemented. Example: O(n²) is "Good" for Bubble Sort (optimal) but "Poor" for Merge Sort.
- Use Big-O notation for time (best, average, worst) and space.
- For each issue, return the exact problematic code snippet instead of line numbers.
- Set fix_type to "code" when you supply code snippet changes; otherwise use "no-code" if you supply text based fixes. The fix field is always required (code or no-code).
- Provide only a concise code summary—no extra commentary.`

func buildPrompt(req Request) string {
	language := req.Language
	if language == "" || language == "auto" {
		language = "Auto-detect"
	}
	filename := req.Filename
	if filename == "" {
		filename = "untitled"
	}

	return fmt.Sprintf(`Analyze the following code for complexity:

Filename: %s
Language: %s

`+"```\n%s\n```"+`

Follow the provided schema exactly, include fix_type and code_snippet (problematic code), and rate complexity relative to the algorithm implemented.`,
		filename, language, req.Code)
}
