package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// maxResponseBytes limita a leitura do corpo de resposta da API.
const maxResponseBytes = 1 << 20

// GeminiProvider chama a API REST do Gemini (generateContent) com retry
// exponencial e ritmo de saída limitado por token bucket — proteção do lado
// cliente contra rajadas de chamadas ao provedor.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	timeout         time.Duration
	attempts        int
	maxTokens       int
	temperature     float64
	maxAnalysisSize int
}

type GeminiOption func(*GeminiProvider)

// WithBaseURL troca o endpoint da API (testes).
func WithBaseURL(u string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = u }
}

// WithTimeout define o prazo por tentativa contra a API.
func WithTimeout(d time.Duration) GeminiOption {
	return func(p *GeminiProvider) { p.timeout = d }
}

// WithAttempts define o total de tentativas para falhas transitórias.
func WithAttempts(n int) GeminiOption {
	return func(p *GeminiProvider) { p.attempts = n }
}

func WithMaxTokens(n int) GeminiOption {
	return func(p *GeminiProvider) { p.maxTokens = n }
}

func WithTemperature(t float64) GeminiOption {
	return func(p *GeminiProvider) { p.temperature = t }
}

// WithMaxAnalysisSize limita o tamanho total (bytes de JSON) do resultado.
func WithMaxAnalysisSize(n int) GeminiOption {
	return func(p *GeminiProvider) { p.maxAnalysisSize = n }
}

// WithPacing limita a taxa de chamadas de saída à API (rps) com burst.
func WithPacing(rps float64, burst int) GeminiOption {
	return func(p *GeminiProvider) {
		if rps > 0 && burst > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.http = c }
}

func WithLogger(log *zap.Logger) GeminiOption {
	return func(p *GeminiProvider) { p.log = log }
}

func NewGeminiProvider(apiKey, model string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:          apiKey,
		model:           model,
		baseURL:         defaultBaseURL,
		http:            &http.Client{},
		log:             zap.NewNop(),
		timeout:         8 * time.Second,
		attempts:        3,
		maxTokens:       4096,
		temperature:     0.3,
		maxAnalysisSize: 100 * 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Available() bool { return p.apiKey != "" }

func (p *GeminiProvider) Model() string { return p.model }

// Analyze envia o código ao modelo e devolve o resultado estruturado.
//
// Falhas transitórias (timeout, 429, 5xx, erro de rede) são re-tentadas com
// backoff exponencial (1s, 2s, 4s) até esgotar as tentativas. Saída inválida
// do modelo não é re-tentada: vira ErrBadModelOutput direto.
func (p *GeminiProvider) Analyze(ctx context.Context, req Request) (*Result, error) {
	if !p.Available() {
		return nil, ErrUnavailable
	}

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	backoff := 1 * time.Second
	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
			if backoff *= 2; backoff > 4*time.Second {
				backoff = 4 * time.Second
			}
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
		}

		res, err := p.attempt(ctx, req, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		p.log.Warn("gemini attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

func (p *GeminiProvider) attempt(ctx context.Context, req Request, body []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.http.Do(hreq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
		}
		return nil, &upstreamError{cause: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &upstreamError{cause: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &upstreamError{status: resp.StatusCode, cause: string(truncate(data, 200))}
	}

	var gr geminiResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}
	text := gr.text()
	if text == "" {
		// possivelmente bloqueado por safety — não adianta re-tentar
		return nil, fmt.Errorf("%w: empty response (finish reason %q)",
			ErrBadModelOutput, gr.finishReason())
	}

	result, err := CoerceResult(text, req)
	if err != nil {
		return nil, err
	}

	result.SourceCode = req.Code
	result.Timestamp = time.Now().Format("Jan 02, 3:04 PM")

	if p.maxAnalysisSize > 0 {
		if encoded, err := json.Marshal(result); err == nil && len(encoded) > p.maxAnalysisSize {
			return nil, fmt.Errorf("%w: analysis exceeds %d bytes",
				ErrBadModelOutput, p.maxAnalysisSize)
		}
	}
	return result, nil
}

func (p *GeminiProvider) buildRequest(req Request) geminiRequest {
	return geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemInstruction}},
		},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(req)}},
		}},
		GenerationConfig: geminiGenConfig{
			Temperature:      p.temperature,
			MaxOutputTokens:  p.maxTokens,
			ResponseMIMEType: "application/json",
		},
	}
}

// upstreamError carrega o status HTTP da API para decidir retry: 429 e 5xx
// (e erro de rede, status zero) são transitórios; o restante não.
type upstreamError struct {
	status int
	cause  string
}

func (e *upstreamError) Error() string {
	if e.status == 0 {
		return "analysis upstream error: " + e.cause
	}
	return fmt.Sprintf("analysis upstream error: status %d: %s", e.status, e.cause)
}

func (e *upstreamError) Unwrap() error { return ErrUpstream }

func (e *upstreamError) transient() bool {
	return e.status == 0 || e.status == http.StatusTooManyRequests || e.status >= 500
}

func retryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var ue *upstreamError
	return errors.As(err, &ue) && ue.transient()
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// Formas de request/response da API generateContent.

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

func (r geminiResponse) finishReason() string {
	if len(r.Candidates) == 0 {
		return "unknown"
	}
	return r.Candidates[0].FinishReason
}
