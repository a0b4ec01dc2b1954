package admission

import (
	"net/http"
	"time"

	"codalyzer-backend/middleware/admission/application"
	"codalyzer-backend/middleware/admission/domain"

	"go.uber.org/zap"
)

type Options struct {
	Controller *application.Controller
	ClientID   ClientIDFunc
	Log        *zap.Logger
}

// Middleware aplica o controle de admissão em volta do handler protegido.
//
// Diferente de um rate limit comum, ele precisa ENVOLVER a chamada, não
// apenas rodar antes dela: se o handler falhar com erro de servidor (>=500),
// a cobrança feita no admit é estornada. A rejeição por quota não estorna —
// a própria tentativa consome orçamento.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.ClientID == nil {
		opts.ClientID = DefaultClientID
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := opts.ClientID(r)

			dec, err := opts.Controller.Admit(r.Context(), clientID)
			if err != nil {
				// fail-closed: store configurado porém inacessível nunca
				// vira "sem limite". Sem headers de quota — estado desconhecido.
				writeDegraded(w)
				return
			}
			if !dec.Admitted {
				writeRejected(w, dec)
				return
			}

			if !dec.Unlimited {
				setRateHeaders(w.Header(), dec)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Estorno: só falha de servidor do downstream devolve quota.
			// Erro de entrada do chamador (4xx) continua cobrado, e falha do
			// próprio estorno nunca muda a resposta já escrita.
			if !dec.Unlimited && rec.status >= http.StatusInternalServerError {
				opts.Controller.Refund(r.Context(), clientID, dec.Ticket)
			}
		})
	}
}

// statusRecorder captura o status escrito pelo handler protegido para que o
// middleware possa classificar o resultado (sucesso vs falha de servidor).
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func setRateHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt64(dec.ClientLimit))
	h.Set("X-RateLimit-Remaining", formatInt64(dec.ClientRemaining()))
	h.Set("X-RateLimit-Reset", dec.ResetAt.UTC().Format(time.RFC3339))
}

// retryAfterSeconds calcula o Retry-After até a virada do bucket; nunca
// devolve menos que 1 segundo em uma rejeição.
func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
