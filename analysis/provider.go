package analysis

import (
	"context"
	"errors"
)

var (
	// ErrInvalidInput indica entrada rejeitada pelo próprio provedor (erro do
	// chamador). Nunca gera estorno de quota: a tentativa foi validamente
	// cobrável.
	ErrInvalidInput = errors.New("invalid analysis input")

	// ErrTimeout indica prazo estourado na chamada ao provedor. Classificado
	// como falha de servidor: elegível a estorno.
	ErrTimeout = errors.New("analysis timed out")

	// ErrUnavailable indica provedor não configurado/inicializado.
	ErrUnavailable = errors.New("analysis provider unavailable")

	// ErrUpstream indica falha de transporte ou resposta de erro da API do
	// modelo depois de esgotadas as tentativas. Falha de servidor.
	ErrUpstream = errors.New("analysis upstream error")

	// ErrBadModelOutput indica que o modelo respondeu, mas com estrutura
	// inválida ou fora dos tetos de tamanho. Também é falha de servidor — o
	// usuário não tem culpa do que o modelo devolveu.
	ErrBadModelOutput = errors.New("model returned invalid analysis")
)

// Request é o pedido de análise já validado pela borda HTTP.
type Request struct {
	Code     string
	Filename string
	Language string
}

// ComplexityMetric é uma medida Big-O com avaliação relativa ao algoritmo.
type ComplexityMetric struct {
	Notation    string `json:"notation"`
	Description string `json:"description"`
	Rating      string `json:"rating"`
}

type TimeComplexity struct {
	Best    ComplexityMetric `json:"best"`
	Average ComplexityMetric `json:"average"`
	Worst   ComplexityMetric `json:"worst"`
}

type Issue struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CodeSnippet string `json:"code_snippet"`
	FixType     string `json:"fix_type"`
	Fix         string `json:"fix"`
}

// Result é a análise estruturada devolvida ao chamador (e compartilhável).
type Result struct {
	Summary         string           `json:"summary"`
	FileName        string           `json:"fileName"`
	Language        string           `json:"language"`
	TimeComplexity  TimeComplexity   `json:"timeComplexity"`
	SpaceComplexity ComplexityMetric `json:"spaceComplexity"`
	Issues          []Issue          `json:"issues"`
	SourceCode      string           `json:"sourceCode,omitempty"`
	Timestamp       string           `json:"timestamp,omitempty"`
}

// Provider é o contrato do provedor de análise.
type Provider interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
	Available() bool
	Model() string
}
