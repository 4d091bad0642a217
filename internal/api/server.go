// Package api exposes the forecast pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fishcast/internal/models"
	"fishcast/internal/pipeline"
)

type Server struct {
	addr     string
	pipeline *pipeline.Pipeline
	log      zerolog.Logger
}

func NewServer(addr string, p *pipeline.Pipeline, log zerolog.Logger) *Server {
	return &Server{addr: addr, pipeline: p, log: log}
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a cold run fetches a year of history
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type dayResponse struct {
	Date           string  `json:"date"`
	MoonPhase      string  `json:"moon_phase"`
	AirTempC       float64 `json:"air_temp_c"`
	PressureKPa    float64 `json:"pressure_kpa"`
	WindSpeedMS    float64 `json:"wind_speed_ms"`
	WaterTempC     float64 `json:"water_temp_c"`
	Rating         string  `json:"rating"`
	Recommendation string  `json:"recommendation"`
	FallbackVars   string  `json:"fallback_vars,omitempty"`
}

type forecastResponse struct {
	RunID     string        `json:"run_id"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Extended  bool          `json:"extended"`
	Days      []dayResponse `json:"days"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	art, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		status, code := classify(err)
		s.writeError(w, status, code, err)
		return
	}

	resp := forecastResponse{
		RunID:     art.ID,
		Latitude:  art.Request.Coordinate.Latitude,
		Longitude: art.Request.Coordinate.Longitude,
		StartDate: art.Horizon.StartDate.Format("2006-01-02"),
		EndDate:   art.Horizon.EndDate().Format("2006-01-02"),
		Extended:  art.Horizon.Extended,
	}
	for _, rec := range art.Records {
		resp.Days = append(resp.Days, dayResponse{
			Date:           rec.Date.Format("2006-01-02"),
			MoonPhase:      rec.MoonPhase,
			AirTempC:       rec.AirTempC,
			PressureKPa:    rec.PressureKPa,
			WindSpeedMS:    rec.WindSpeedMS,
			WaterTempC:     rec.WaterTempC,
			Rating:         string(rec.Rating),
			Recommendation: rec.Recommendation,
			FallbackVars:   rec.FallbackList(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classify maps pipeline error kinds onto HTTP statuses.
func classify(err error) (int, string) {
	var pe *models.PipelineError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, string(models.KindInternal)
	}
	switch pe.Kind {
	case models.KindInvalidCoordinate, models.KindHorizon:
		return http.StatusUnprocessableEntity, string(pe.Kind)
	case models.KindUpstreamFetch:
		return http.StatusBadGateway, string(pe.Kind)
	case models.KindInsufficientHistory:
		return http.StatusUnprocessableEntity, string(pe.Kind)
	default:
		return http.StatusInternalServerError, string(pe.Kind)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, err error) {
	if status >= 500 {
		s.log.Error().Err(err).Msg("request failed")
	} else {
		s.log.Debug().Err(err).Msg("request rejected")
	}
	s.writeJSON(w, status, map[string]string{"error": code, "detail": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}
