package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/semiprime/survival-matrix/internal/cache"
	"github.com/semiprime/survival-matrix/internal/database"
	"github.com/semiprime/survival-matrix/internal/errors"
	"github.com/semiprime/survival-matrix/internal/fingerprint"
	"github.com/semiprime/survival-matrix/internal/monitoring"
	"github.com/semiprime/survival-matrix/internal/security"
	"github.com/semiprime/survival-matrix/internal/submission"
	"github.com/semiprime/survival-matrix/internal/types"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	assetPrefix := getEnvOrDefault("ASSET_PREFIX", "./assets/survival_matrix")
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	port := getEnvOrDefault("PORT", "8080")

	// Load the asset bundle once at startup. All three files must load and
	// validate together; a partial bundle leaves the scorer in not-ready mode
	// rather than scoring with defaults.
	store := fingerprint.NewAssetStore(assetPrefix)
	bundle, loadErr := store.Load()
	if loadErr != nil {
		slog.Warn("Asset bundle not loaded, scoring disabled until trained assets exist",
			"prefix", assetPrefix,
			"error", loadErr)
	}
	scorer := fingerprint.NewScorer(bundle)

	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()
	appLogger.SetLevel(parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")))

	kaggleClient := submission.NewKaggleClient()
	submissionService := submission.NewService(repo, kaggleClient, scorer, appLogger)
	defer submissionService.Close()

	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	r.Use(cors.New(cors.Config{
		AllowOrigins:  securityConfig.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"X-Timeout"},
		MaxAge:        12 * time.Hour,
	}))

	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.LimitBodySize)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.RateLimitByIP)

	appCache := cache.NewCache(1024, 15*time.Minute)
	r.Use(appCache.Middleware(appMetrics, appLogger))

	r.GET("/health", func(c *gin.Context) {
		ready := scorer.Ready()

		// not-ready is reported, not failed: the process is healthy even when
		// scoring is unavailable
		status := "ok"
		if !ready {
			status = "degraded"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":               status,
			"timestamp":            time.Now().Format(time.RFC3339),
			"version":              version,
			"assets_loaded":        ready,
			"survival_model_ready": ready,
			"kaggleConfigured":     kaggleClient.Configured(),
			"metrics":              appMetrics.GetStats(),
		})
	})

	r.POST("/predict", func(c *gin.Context) {
		start := time.Now()

		if !scorer.Ready() {
			respondError(c, fingerprint.ErrNotReady)
			return
		}

		var raw json.RawMessage
		if err := c.ShouldBindJSON(&raw); err != nil {
			respondError(c, errors.NewValidationError("request body must be a JSON object or array"))
			return
		}

		records, err := decodeRecords(raw)
		if err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}
		if len(records) == 0 {
			respondError(c, errors.NewValidationError("request contains no passenger records"))
			return
		}

		resp, err := scorer.ScoreBatch(records)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.RecordPrediction(resp.N)
		appLogger.PredictionLogger(resp.N, time.Since(start), c.GetBool("cache_hit"))

		c.JSON(http.StatusOK, resp)
	})

	r.GET("/assets/info", func(c *gin.Context) {
		if !scorer.Ready() {
			appErr := errors.NewNotReadyError("Survival model not ready: asset bundle not loaded", loadErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		weights, err := scorer.Weights()
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"prefix":      store.Prefix(),
			"version":     weights.Version,
			"multipliers": weights.Multipliers,
			"age_curve":   weights.Age,
			"age_median":  weights.AgeMedian,
			"fare_median": weights.FareMedian,
		})
	})

	r.POST("/submissions", func(c *gin.Context) {
		var req types.SubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid submission request", err.Error()))
			return
		}

		sub, err := submissionService.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementSubmissions()
		c.JSON(http.StatusAccepted, sub)
	})

	r.GET("/submissions", func(c *gin.Context) {
		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		subs, err := submissionService.List(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"n": len(subs), "submissions": subs})
	})

	r.GET("/submissions/:id", func(c *gin.Context) {
		sub, err := submissionService.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if sub == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusOK, sub)
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": db.GetPoolStats(),
		})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if os.Getenv("ENABLE_PROFILING") == "true" {
		slog.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port, "assets_loaded", scorer.Ready())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// decodeRecords accepts either a single passenger object or an array of them.
// A single object scores as a batch of one.
func decodeRecords(raw json.RawMessage) ([]types.PassengerRecord, error) {
	trimmed := trimLeadingSpace(raw)
	if len(trimmed) == 0 {
		return nil, stderrors.New("empty request body")
	}

	if trimmed[0] == '[' {
		var records []types.PassengerRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, stderrors.New("request array contains a malformed passenger record")
		}
		return records, nil
	}

	var record types.PassengerRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, stderrors.New("request body is not a valid passenger record")
	}
	return []types.PassengerRecord{record}, nil
}

func trimLeadingSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\n', '\r':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}

// respondError maps pipeline errors onto the HTTP error taxonomy. Validation
// failures return 400 with per-field details, not-ready returns 503, and
// everything else falls through to the generic converter.
func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError

	var ve *fingerprint.ValidationError
	switch {
	case stderrors.As(err, &ve):
		appErr = errors.NewValidationErrorWithMap(ve.Fields)
	case stderrors.Is(err, fingerprint.ErrNotReady):
		appErr = errors.NewNotReadyError("Survival model not ready: asset bundle not loaded", nil)
	default:
		appErr = errors.ToAppError(err)
	}

	errors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
