// internal/api/api.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/status"
	"github.com/tamzrod/coupler-io/internal/transport"
	"github.com/tamzrod/coupler-io/internal/writer"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	maxBody         = 64 << 10
)

// Engine is what the HTTP surface needs from a running engine.
type Engine interface {
	ID() string
	Cards() []*cards.Descriptor
	Link() transport.State
	Status() status.Snapshot
	Readings() []decode.Reading
	Write(ctx context.Context, cmd writer.Command) (writer.Result, error)
	Gatherer() prometheus.Gatherer
}

// CardView is the JSON shape of one accepted card.
type CardView struct {
	Index       int    `json:"index"`
	OutputIndex int    `json:"outputIndex,omitempty"`
	Topic       string `json:"topic"`
	Type        string `json:"type"`
	Family      string `json:"family"`
	Direction   string `json:"direction"`
	Kind        string `json:"kind"`
	Channels    int    `json:"channels"`
	Start       uint16 `json:"start"`
	Quantity    uint16 `json:"quantity"`
	PollRateMs  int64  `json:"pollRateMs"`
	Pollable    bool   `json:"pollable"`
	ReadOnWrite bool   `json:"readOnWrite"`
	WordOrder   string `json:"wordOrder,omitempty"`
}

func viewOf(d *cards.Descriptor) CardView {
	v := CardView{
		Index:       d.Index,
		OutputIndex: d.OutputIndex,
		Topic:       d.Topic(),
		Type:        d.Type.Name,
		Family:      d.Type.Family.String(),
		Direction:   d.Direction.String(),
		Kind:        d.Kind.String(),
		Channels:    d.Channels,
		Start:       d.Start,
		Quantity:    d.Quantity,
		PollRateMs:  d.PollRate.Milliseconds(),
		Pollable:    d.Pollable,
		ReadOnWrite: d.ReadOnWrite,
	}
	if d.WordsPerChannel > 1 {
		v.WordOrder = d.Settings.WordOrder.String()
	}
	return v
}

type server struct {
	eng Engine
	log zerolog.Logger
}

// NewRouter wires the REST endpoints and /metrics.
func NewRouter(eng Engine, log zerolog.Logger) *mux.Router {
	s := &server{eng: eng, log: log}

	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/api/cards", s.getCards).Methods("GET")
	r.HandleFunc("/api/status", s.getStatus).Methods("GET")
	r.HandleFunc("/api/readings", s.getReadings).Methods("GET")
	r.HandleFunc("/api/write", s.postWrite).Methods("POST")
	r.HandleFunc("/api/cards/{card}/channels/{channel}", s.postChannel).Methods("POST")
	r.Handle("/metrics", promhttp.HandlerFor(eng.Gatherer(), promhttp.HandlerOpts{})).Methods("GET")

	return r
}

// ---- handlers ----

func (s *server) getCards(w http.ResponseWriter, r *http.Request) {
	ds := s.eng.Cards()
	out := make([]CardView, 0, len(ds))
	for _, d := range ds {
		out = append(out, viewOf(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": out})
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instance": s.eng.ID(),
		"link":     s.eng.Link().String(),
		"status":   s.eng.Status(),
	})
}

func (s *server) getReadings(w http.ResponseWriter, r *http.Request) {
	rs := s.eng.Readings()
	if card := r.URL.Query().Get("card"); card != "" {
		kept := rs[:0]
		for _, rd := range rs {
			if rd.Topic == card {
				kept = append(kept, rd)
			}
		}
		rs = kept
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"readings": rs})
}

func (s *server) postWrite(w http.ResponseWriter, r *http.Request) {
	var cmd writer.Command
	if err := decodeBody(w, r, &cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	s.write(w, r, cmd)
}

func (s *server) postChannel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ch, err := strconv.Atoi(vars["channel"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid channel"})
		return
	}

	var body struct {
		Value any `json:"value"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	s.write(w, r, writer.Command{Target: vars["card"], Channel: ch, Value: body.Value})
}

func (s *server) write(w http.ResponseWriter, r *http.Request, cmd writer.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	res, err := s.eng.Write(ctx, cmd)
	if err != nil {
		writeJSON(w, StatusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StatusFor maps a write error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, writer.ErrUnknownCard):
		return http.StatusNotFound
	case errors.Is(err, writer.ErrChannelRange), errors.Is(err, writer.ErrBadValue):
		return http.StatusBadRequest
	case errors.Is(err, transport.ErrNotConnected), errors.Is(err, transport.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// ---- helpers ----

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.code).
			Dur("took", time.Since(start)).
			Msg("http")
	})
}

// ------------------------------------------------------------
// server lifecycle
// ------------------------------------------------------------

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", addr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	<-errCh
	return nil
}
