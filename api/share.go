package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"codalyzer-backend/analysis"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrShareNotFound indica share inexistente ou já expirado.
var ErrShareNotFound = errors.New("share not found")

// ShareStore guarda resultados compartilháveis no Redis com TTL. A expiração
// é do lado do servidor: nenhum processo de limpeza é necessário aqui.
type ShareStore struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

type ShareOption func(*ShareStore)

func WithSharePrefix(prefix string) ShareOption {
	return func(s *ShareStore) { s.prefix = prefix }
}

func WithShareTTL(ttl time.Duration) ShareOption {
	return func(s *ShareStore) { s.ttl = ttl }
}

func WithShareTimeout(d time.Duration) ShareOption {
	return func(s *ShareStore) { s.timeout = d }
}

func NewShareStore(rdb *redis.Client, opts ...ShareOption) *ShareStore {
	s := &ShareStore{
		rdb:     rdb,
		prefix:  "codalyzer:share:",
		ttl:     7 * 24 * time.Hour,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL devolve a validade configurada dos shares.
func (s *ShareStore) TTL() time.Duration { return s.ttl }

// Create persiste o resultado e devolve o id público do share.
func (s *ShareStore) Create(ctx context.Context, res *analysis.Result) (string, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := uuid.NewString()
	if err := s.rdb.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Get recupera um resultado compartilhado; expirado ou inexistente vira
// ErrShareNotFound.
func (s *ShareStore) Get(ctx context.Context, id string) (*analysis.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.rdb.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}

	var res analysis.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateShare cria um link compartilhável para um resultado de análise.
func (h *Handlers) CreateShare(w http.ResponseWriter, r *http.Request) {
	if h.Shares == nil {
		writeError(w, http.StatusServiceUnavailable, "sharing_unavailable",
			"Sharing unavailable (store not configured)")
		return
	}

	var res analysis.Result
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	id, err := h.Shares.Create(r.Context(), &res)
	if err != nil {
		h.logger().Error("failed to store share", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "share_failed",
			"Failed to create share link")
		return
	}

	writeJSON(w, http.StatusOK, ShareResponse{
		Success:   true,
		ShareID:   id,
		ExpiresIn: int(h.Shares.TTL().Seconds()),
	})
}

// GetShare recupera um resultado compartilhado pelo id.
func (h *Handlers) GetShare(w http.ResponseWriter, r *http.Request) {
	if h.Shares == nil {
		writeError(w, http.StatusServiceUnavailable, "sharing_unavailable", "Sharing unavailable")
		return
	}

	id := r.PathValue("id")
	if id == "" || len(id) > 64 || !isASCII(id) {
		writeError(w, http.StatusBadRequest, "invalid_share_id", "Invalid share ID")
		return
	}

	res, err := h.Shares.Get(r.Context(), id)
	if errors.Is(err, ErrShareNotFound) {
		writeError(w, http.StatusNotFound, "share_not_found", "Share not found or expired")
		return
	}
	if err != nil {
		h.logger().Error("failed to retrieve share", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "share_failed",
			"Failed to retrieve share")
		return
	}

	writeJSON(w, http.StatusOK, ShareResult{Success: true, Result: res})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
