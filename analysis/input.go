package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// maxRunLength é o tamanho máximo de uma sequência do mesmo caractere antes
// de o conteúdo ser considerado abusivo.
const maxRunLength = 500

// injectionScanWindow limita quantos bytes do início do código são varridos
// pelos padrões de injeção (custo previsível em entradas grandes).
const injectionScanWindow = 2048

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all|above)\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all|above)`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)\[\s*system\s*\]`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|previous)`),
}

// ValidateCode aplica as validações de conteúdo da entrada. Qualquer falha é
// erro do chamador (ErrInvalidInput) — o pipeline cobra a tentativa e não
// estorna.
func ValidateCode(code string, maxLen int) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: code cannot be empty or whitespace only", ErrInvalidInput)
	}
	if maxLen > 0 && len(code) > maxLen {
		return fmt.Errorf("%w: code exceeds %d characters", ErrInvalidInput, maxLen)
	}
	if hasLongRun(code, maxRunLength) {
		return fmt.Errorf("%w: invalid code content detected", ErrInvalidInput)
	}

	window := code
	if len(window) > injectionScanWindow {
		window = window[:injectionScanWindow]
	}
	for _, p := range injectionPatterns {
		if p.MatchString(window) {
			return fmt.Errorf("%w: potential prompt injection detected", ErrInvalidInput)
		}
	}
	return nil
}

// hasLongRun detecta sequências do mesmo caractere maiores que max.
// (regexp não serve aqui: RE2 não tem backreference.)
func hasLongRun(s string, max int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if run > 0 && r == prev {
			run++
			if run > max {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}

// SanitizeFilename remove separadores de caminho e bytes nulos; extensões
// fora da lista permitida são descartadas mantendo o nome base.
func SanitizeFilename(name string, allowedExts map[string]bool) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "", "\\", "", "\x00", "").Replace(name)
	if name == "" {
		return "untitled"
	}

	if i := strings.LastIndex(name, "."); i >= 0 && len(allowedExts) > 0 {
		ext := strings.ToLower(name[i:])
		if !allowedExts[ext] {
			name = name[:i]
		}
	}
	if name == "" {
		return "untitled"
	}
	return name
}

var allowedLanguages = map[string]bool{
	"auto": true, "javascript": true, "typescript": true, "python": true,
	"cpp": true, "c": true, "java": true, "go": true, "rust": true,
	"ruby": true, "php": true,
}

// NormalizeLanguage reduz a linguagem à lista suportada; desconhecidas viram
// "auto" (detecção pelo modelo).
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if allowedLanguages[lang] {
		return lang
	}
	return "auto"
}
