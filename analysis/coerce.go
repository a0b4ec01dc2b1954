package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxSnippetLength é o teto por snippet de issue devolvido pelo modelo.
const maxSnippetLength = 4096

var validRatings = map[string]bool{"Good": true, "Fair": true, "Poor": true}

var validIssueTypes = map[string]bool{
	"Optimization": true, "Bug": true, "Critical": true,
	"Security": true, "Style": true,
}

// CoerceResult converte o texto devolvido pelo modelo em um Result válido:
// remove cercas de markdown, faz o parse e preenche os campos que o modelo
// eventualmente omitiu. Estrutura irrecuperável vira ErrBadModelOutput
// (falha de servidor, elegível a estorno de quota).
func CoerceResult(text string, req Request) (*Result, error) {
	payload := stripFences(text)

	var res Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		// última tentativa: o primeiro objeto {...} no meio do texto
		obj := firstJSONObject(payload)
		if obj == "" || json.Unmarshal([]byte(obj), &res) != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
		}
	}

	normalize(&res, req)

	for _, issue := range res.Issues {
		if len(issue.CodeSnippet) > maxSnippetLength {
			return nil, fmt.Errorf("%w: issue snippet exceeds %d chars",
				ErrBadModelOutput, maxSnippetLength)
		}
	}
	return &res, nil
}

// stripFences remove cercas ```json ... ``` que alguns modelos insistem em
// adicionar mesmo com MIME JSON pedido.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func firstJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// normalize preenche defaults para os campos que o modelo omitiu ou devolveu
// fora do vocabulário, em vez de falhar a análise inteira.
func normalize(res *Result, req Request) {
	if res.Summary == "" {
		res.Summary = "Code analysis completed."
	}
	if res.FileName == "" {
		if req.Filename != "" && req.Filename != "untitled" {
			res.FileName = req.Filename
		} else {
			res.FileName = "analyzed_code"
		}
	}
	if res.Language == "" {
		res.Language = req.Language
	}

	normalizeMetric(&res.TimeComplexity.Best)
	normalizeMetric(&res.TimeComplexity.Average)
	normalizeMetric(&res.TimeComplexity.Worst)
	normalizeMetric(&res.SpaceComplexity)

	for i := range res.Issues {
		issue := &res.Issues[i]
		if issue.ID == "" {
			issue.ID = fmt.Sprintf("issue-%d", i+1)
		}
		if !validIssueTypes[issue.Type] {
			issue.Type = "Optimization"
		}
		if issue.Title == "" {
			issue.Title = "Issue detected"
		}
		if issue.Description == "" {
			issue.Description = "See code for details"
		}
		if issue.FixType != "code" && issue.FixType != "no-code" {
			issue.FixType = "no-code"
		}
	}
}

func normalizeMetric(m *ComplexityMetric) {
	if m.Notation == "" {
		m.Notation = "O(n)"
		m.Description = "Could not determine"
	}
	if !validRatings[m.Rating] {
		m.Rating = "Fair"
	}
}
