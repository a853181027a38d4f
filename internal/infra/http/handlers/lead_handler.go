package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
	"github.com/xavierca1/eva-followup/internal/usecase"
)

type LeadCapturer interface {
	Execute(ctx context.Context, input usecase.CaptureLeadInput) (*usecase.CaptureLeadOutput, error)
}

type LeadHandler struct {
	capture     LeadCapturer
	finder      entity.LeadFinder
	rateLimiter *RateLimiter
}

// NewLeadHandler aceita finder nil quando o store não suporta consulta.
func NewLeadHandler(capture LeadCapturer, finder entity.LeadFinder, perMinute int) *LeadHandler {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &LeadHandler{
		capture:     capture,
		finder:      finder,
		rateLimiter: NewRateLimiter(perMinute, time.Minute),
	}
}

func (h *LeadHandler) Capture(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !h.rateLimiter.Allow(clientIP) {
		writeError(w, http.StatusTooManyRequests, "Muitas requisições. Tente novamente em instantes.")
		return
	}

	input, err := decodeLeadInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}

	out, err := h.capture.Execute(r.Context(), input)
	if err != nil {
		var verr *usecase.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Status:  "error",
				Message: validationMessage(verr),
				Errors:  verr.Fields,
			})
			return
		}

		log.Error().Err(err).Str("client_ip", clientIP).Msg("❌ erro inesperado ao capturar lead")
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	if h.finder == nil {
		writeError(w, http.StatusNotFound, "Consulta de leads não disponível")
		return
	}

	id := chi.URLParam(r, "id")
	lead, err := h.finder.FindByInternalID(r.Context(), id)
	if errors.Is(err, entity.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, "Lead não encontrado")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("lead_id", id).Msg("erro ao buscar lead")
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"lead":   lead,
	})
}

const maxListLimit = 200

// ListLeads atende GET /leads?status=&limit=.
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if h.finder == nil {
		writeError(w, http.StatusNotFound, "Consulta de leads não disponível")
		return
	}

	filter := entity.LeadFilter{Status: entity.FollowUpStatus(r.URL.Query().Get("status")), Limit: 50}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Status inválido")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Limite inválido")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	leads, err := h.finder.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Str("status", string(filter.Status)).Msg("erro ao listar leads")
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"count":  len(leads),
		"leads":  leads,
	})
}

// Close encerra a limpeza periódica do rate limiter.
func (h *LeadHandler) Close() {
	h.rateLimiter.Stop()
}

// Preflight sem Origin (curl, health checkers) não passa pelo cors.
func (h *LeadHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

const maxFormMemory = 1 << 20

func decodeLeadInput(r *http.Request) (usecase.CaptureLeadInput, error) {
	var input usecase.CaptureLeadInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		var err error
		if mediaType == "multipart/form-data" {
			// ParseForm ignora corpos multipart
			err = r.ParseMultipartForm(maxFormMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return input, err
		}
		input = usecase.CaptureLeadInput{
			Name:        r.PostForm.Get("name"),
			Email:       r.PostForm.Get("email"),
			Phone:       r.PostForm.Get("phone"),
			Source:      r.PostForm.Get("source"),
			Interest:    r.PostForm.Get("interest"),
			UTMSource:   r.PostForm.Get("utm_source"),
			UTMCampaign: r.PostForm.Get("utm_campaign"),
			Nome:        r.PostForm.Get("nome"),
			Telefone:    r.PostForm.Get("telefone"),
			Interesse:   r.PostForm.Get("interesse"),
			Fonte:       r.PostForm.Get("fonte"),
		}
		return input, nil
	}

	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&input)
	if errors.Is(err, io.EOF) {
		// corpo vazio cai na validação de campos obrigatórios
		return input, nil
	}
	return input, err
}

func validationMessage(verr *usecase.ValidationError) string {
	var required []string
	for _, f := range verr.Fields {
		if f.Message == "is required" {
			required = append(required, f.Field)
		}
	}
	if len(required) > 0 {
		return "Campos obrigatórios: " + strings.Join(required, ", ")
	}
	return "Email inválido"
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimiter conta requisições por IP numa janela fixa.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go rl.cleanup(10 * time.Minute)
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	now := time.Now()

	if !exists {
		rl.visitors[ip] = &visitor{count: 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) > rl.window {
		v.count = 1
		v.lastReset = now
		return true
	}

	v.count++
	return v.count <= rl.limit
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
			evicted++
		}
	}
	return evicted
}
