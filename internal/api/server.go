package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

// SnapshotSource hands out the latest published snapshot, or nil before the
// first cycle completes.
type SnapshotSource interface {
	Current() *models.Snapshot
}

type Config struct {
	Addr        string
	CORSOrigins []string
}

// Server is a read-only JSON view over the current snapshot.
type Server struct {
	cfg    Config
	source SnapshotSource
	server *http.Server
}

func NewServer(cfg Config, source SnapshotSource) *Server {
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return &Server{cfg: cfg, source: source}
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	})

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", s.getSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/pairs", s.getPairs).Methods(http.MethodGet)
	api.HandleFunc("/opportunities", s.getOpportunities).Methods(http.MethodGet)

	return c.Handler(router)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("[api] listening on %s", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

type snapshotMeta struct {
	ID            string                  `json:"id"`
	StartedAt     time.Time               `json:"started_at"`
	CompletedAt   time.Time               `json:"completed_at"`
	DurationMS    int64                   `json:"duration_ms"`
	RecordsA      int                     `json:"records_a"`
	RecordsB      int                     `json:"records_b"`
	Pairs         int                     `json:"pairs"`
	Opportunities int                     `json:"opportunities"`
	SourceErrors  map[models.Venue]string `json:"source_errors,omitempty"`
}

func metaOf(snap *models.Snapshot) snapshotMeta {
	return snapshotMeta{
		ID:            snap.ID,
		StartedAt:     snap.StartedAt,
		CompletedAt:   snap.CompletedAt,
		DurationMS:    snap.Duration().Milliseconds(),
		RecordsA:      snap.RecordsA,
		RecordsB:      snap.RecordsB,
		Pairs:         len(snap.Pairs),
		Opportunities: len(snap.Opportunities),
		SourceErrors:  snap.SourceErrors,
	}
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status     string    `json:"status"`
		Timestamp  time.Time `json:"timestamp"`
		SnapshotID string    `json:"snapshot_id,omitempty"`
		AgeSeconds float64   `json:"age_seconds,omitempty"`
	}{
		Status:    "starting",
		Timestamp: time.Now().UTC(),
	}
	if snap := s.source.Current(); snap != nil {
		response.Status = "healthy"
		response.SnapshotID = snap.ID
		response.AgeSeconds = time.Since(snap.CompletedAt).Seconds()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metaOf(snap))
}

// getPairs supports ?method=EXACT_ID|EXACT_TITLE|FUZZY and ?limit=N.
func (s *Server) getPairs(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method := models.MatchMethod(strings.ToUpper(r.URL.Query().Get("method")))

	pairs := make([]models.MatchedPair, 0, len(snap.Pairs))
	for _, p := range snap.Pairs {
		if method != "" && p.Method != method {
			continue
		}
		pairs = append(pairs, p)
		if limit > 0 && len(pairs) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, struct {
		SnapshotID string               `json:"snapshot_id"`
		Pairs      []models.MatchedPair `json:"pairs"`
		Count      int                  `json:"count"`
	}{SnapshotID: snap.ID, Pairs: pairs, Count: len(pairs)})
}

// getOpportunities supports ?min_profit=F and ?limit=N. Order is the
// snapshot's: profit fraction descending.
func (s *Server) getOpportunities(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var minProfit float64
	if raw := r.URL.Query().Get("min_profit"); raw != "" {
		minProfit, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "min_profit must be a number", http.StatusBadRequest)
			return
		}
	}

	ops := make([]models.ArbitrageOpportunity, 0, len(snap.Opportunities))
	for _, op := range snap.Opportunities {
		if op.ProfitFraction < minProfit {
			continue
		}
		ops = append(ops, op)
		if limit > 0 && len(ops) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, struct {
		SnapshotID    string                        `json:"snapshot_id"`
		Opportunities []models.ArbitrageOpportunity `json:"opportunities"`
		Count         int                           `json:"count"`
		Timestamp     time.Time                     `json:"timestamp"`
	}{SnapshotID: snap.ID, Opportunities: ops, Count: len(ops), Timestamp: snap.CompletedAt})
}

func (s *Server) current(w http.ResponseWriter) (*models.Snapshot, bool) {
	snap := s.source.Current()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("[api] encode response: %v", err)
	}
}
