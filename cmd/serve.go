package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/staging"
	"github.com/sells-group/fund-intake-cli/internal/submit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the staged-unit review API",
	Long:  "Exposes the staged units over HTTP for the review UI: list and inspect units, edit a unit's payload, and submit a unit. Payload is the only editable field.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		apiClient, err := initAssetClient(ctx)
		if err != nil {
			return err
		}
		sub := submit.New(apiClient, st, retryConfig())
		r := buildRouter(st, sub)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting review API", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// buildRouter assembles the review API. Payload is the only field the API
// can change on a unit; submission goes through the same submitter as the
// CLI.
func buildRouter(st staging.Store, sub *submit.Submitter) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/units", func(w http.ResponseWriter, req *http.Request) {
		units, err := st.List(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if units == nil {
			units = []staging.Unit{}
		}
		writeJSON(w, http.StatusOK, units)
	})

	r.Get("/units/{id}", func(w http.ResponseWriter, req *http.Request) {
		unit, err := st.Get(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, unit)
	})

	r.Put("/units/{id}/payload", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !json.Valid(body) {
			writeError(w, http.StatusBadRequest, eris.New("payload must be valid JSON"))
			return
		}
		if _, err := st.Get(req.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err := st.UpdatePayload(req.Context(), id, body); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		unit, err := st.Get(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, unit)
	})

	r.Post("/units/{id}/submit", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		res, err := sub.SubmitOne(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		status := map[string]any{
			"unit_id": res.UnitID,
			"status":  res.Status,
		}
		if res.Err != nil {
			status["error"] = res.Err.Error()
		}
		writeJSON(w, http.StatusOK, status)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
