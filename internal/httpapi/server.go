package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diffusiond/internal/manager"
	"diffusiond/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Root() types.RootResponse
	Health() types.HealthResponse
	Ready() bool
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if c := corsMiddleware(); c != nil {
		r.Use(c)
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", rootHandler(svc))
	r.Get("/health", healthHandler(svc))
	r.Post("/generate", generateHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// rootHandler godoc
// @Summary      Service status
// @Description  Reports readiness, device and the active model.
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.RootResponse
// @Router       / [get]
func rootHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Root())
	}
}

// healthHandler godoc
// @Summary      Health
// @Description  Always 200; pipeline_loaded tells whether generation is possible.
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func healthHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	}
}

// generateHandler godoc
// @Summary      Generate an image
// @Description  Runs one text-to-image generation and returns a base64 PNG.
// @Tags         generation
// @Accept       json
// @Produce      json
// @Param        request  body      types.GenerateRequest  true  "Generation parameters"
// @Success      200      {object}  types.GenerateResponse
// @Header       200      {string}  X-Generation-ID  "Generation id for log correlation"
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /generate [post]
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDecodeError(w, err)
			observeGeneration("invalid", 0)
			return
		}

		genID := uuid.NewString()
		w.Header().Set("X-Generation-ID", genID)
		rid := middleware.GetReqID(r.Context())
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			z := zlog.Info().Str("path", r.URL.Path).Str("generation_id", genID)
			if rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("generate start")
		}
		start := time.Now()

		ctx, cancel := generationContext(r.Context())
		defer cancel()
		resp, err := svc.Generate(manager.WithGenerationID(ctx, genID), req)
		if err != nil {
			// Client went away: nothing is written.
			if r.Context().Err() != nil {
				observeGeneration("canceled", time.Since(start))
				logEnd(lvl, 499, rid, genID, time.Since(start), err)
				return
			}
			if shuttingDown(ctx) {
				writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
				observeGeneration("canceled", time.Since(start))
				logEnd(lvl, http.StatusServiceUnavailable, rid, genID, time.Since(start), err)
				return
			}
			status := writeServiceError(w, err)
			observeGeneration(outcomeFor(err, status), time.Since(start))
			logEnd(lvl, status, rid, genID, time.Since(start), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		observeGeneration("ok", time.Since(start))
		logEnd(lvl, http.StatusOK, rid, genID, time.Since(start), nil)
	}
}

func outcomeFor(err error, status int) string {
	switch {
	case manager.IsContentFiltered(err):
		return "filtered"
	case status == http.StatusTooManyRequests:
		return "rejected"
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status < http.StatusInternalServerError:
		return "invalid"
	default:
		return "error"
	}
}

// writeDecodeError reports malformed bodies as 400, with a field detail when
// a value has the wrong JSON type.
func writeDecodeError(w http.ResponseWriter, err error) {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{
			Error: "invalid request",
			Code:  http.StatusBadRequest,
			Detail: []types.FieldError{{
				Loc:  []string{"body", te.Field},
				Msg:  te.Field + " must be of type " + te.Type.String(),
				Type: "type_error",
			}},
		})
		return
	}
	// Oversized bodies also land here; the limit is not disclosed.
	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}
