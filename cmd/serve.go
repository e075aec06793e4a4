package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/notify"
)

var servePort int

// dealEvent is one entry of the CRM webhook batch payload.
type dealEvent struct {
	ObjectID         int64  `json:"objectId"`
	SubscriptionType string `json:"subscriptionType"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server and the recovery scanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initQualifier(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		go env.scanner.Run(ctx)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "X-Slack-Signature", "X-Slack-Request-Timestamp"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			resp := map[string]any{"status": "ok"}
			if env.ollama != nil {
				h, err := env.ollama.Health(req.Context(), cfg.Ollama.Model)
				if err != nil {
					resp["ollama"] = "error"
				} else {
					resp["ollama"] = map[string]bool{
						"reachable":    h.Reachable,
						"model_loaded": h.ModelLoaded,
					}
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		})

		r.Post("/webhook/deals", func(w http.ResponseWriter, req *http.Request) {
			var events []dealEvent
			if err := json.NewDecoder(req.Body).Decode(&events); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}

			accepted := 0
			for _, ev := range events {
				if ev.SubscriptionType != "" && ev.SubscriptionType != "deal.creation" {
					continue
				}
				dealID := strconv.FormatInt(ev.ObjectID, 10)
				accepted++

				// Process asynchronously; the webhook sender only needs an ack.
				go func() {
					if err := env.machine.HandleEvent(ctx, dealID); err != nil {
						zap.L().Error("webhook deal processing failed",
							zap.String("deal_id", dealID),
							zap.Error(err),
						)
					}
				}()
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
		})

		r.Post("/slack/interactions", func(w http.ResponseWriter, req *http.Request) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				http.Error(w, "read body", http.StatusBadRequest)
				return
			}

			err = env.callback.Handle(req.Context(),
				req.Header.Get("X-Slack-Request-Timestamp"),
				req.Header.Get("X-Slack-Signature"),
				body,
			)
			switch {
			case err == nil:
				w.WriteHeader(http.StatusOK)
			case errors.Is(err, notify.ErrBadSignature):
				http.Error(w, "bad signature", http.StatusUnauthorized)
			case errors.Is(err, notify.ErrBadPayload), errors.Is(err, notify.ErrUnknownAction):
				http.Error(w, "bad payload", http.StatusBadRequest)
			default:
				zap.L().Error("interaction handling failed", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownServer(srv, 10*time.Second)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownServer drains in-flight requests. The signal context is already
// cancelled once shutdown starts, so the drain needs its own deadline.
func shutdownServer(srv *http.Server, timeout time.Duration) {
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		zap.L().Warn("server shutdown incomplete", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
