package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/monitoring"
)

var servePort int

// buildMux wires the status and classification routes. useAI gates the LLM
// escalation path for /classify requests.
func buildMux(env *appEnv, useAI bool) *http.ServeMux {
	collector := monitoring.NewCollector(env.Store)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /pipeline", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := collector.Collect(r.Context())
		if err != nil {
			zap.L().Error("pipeline snapshot failed", zap.Error(err))
			http.Error(w, `{"error":"snapshot failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	})

	mux.HandleFunc("GET /followups", func(w http.ResponseWriter, r *http.Request) {
		items, err := env.Reconciler.FollowupQueue(r.Context(), time.Now())
		if err != nil {
			zap.L().Error("followup queue failed", zap.Error(err))
			http.Error(w, `{"error":"followup queue failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	})

	mux.HandleFunc("POST /check-replies", func(w http.ResponseWriter, r *http.Request) {
		result, err := env.Reconciler.CheckReplies(r.Context(), env.Reader)
		if err != nil {
			zap.L().Error("reply check failed", zap.Error(err))
			http.Error(w, `{"error":"reply check failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	mux.HandleFunc("POST /classify", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Subject      string `json:"subject"`
			Body         string `json:"body"`
			CurrentStage int    `json:"current_stage"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Body == "" {
			http.Error(w, `{"error":"body is required"}`, http.StatusBadRequest)
			return
		}

		result := env.Orch.ClassifySmart(r.Context(), classify.AnalyzeRequest{
			Subject:      req.Subject,
			Body:         req.Body,
			CurrentStage: req.CurrentStage,
		}, useAI)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	return mux
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status and classification HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		useAI := cfg.Classify.UseAI && cfg.Anthropic.Key != ""
		mux := buildMux(env, useAI)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
