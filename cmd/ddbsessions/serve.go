package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/internal/config"
	"github.com/jjeffery/ddbsessions/sessionstore"
	"github.com/jjeffery/ddbsessions/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a demo application that counts visits in a session",
	Long: `Serve a demo application that counts visits in a session.

  /         increments the visit counter in the session
  /logout   invalidates the session
  /metrics  session store metrics in Prometheus format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer db.close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		store := newStore(cfg, db, logger, sessionstore.NewMetrics(reg))

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           newHandler(store, reg, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServer(cmd.Context(), server, logger)
	},
}

// newStore creates the session store described by cfg.
func newStore(cfg *config.Config, db storage.Provider, logger hclog.Logger, metrics *sessionstore.Metrics) *sessionstore.Store {
	options := sessionstore.Options{
		CookieName: cfg.Cookie.Name,
		Cookie: sessions.Options{
			Domain:   cfg.Cookie.Domain,
			Path:     cfg.Cookie.Path,
			MaxAge:   cfg.Cookie.MaxAge,
			Secure:   cfg.Cookie.Secure,
			SameSite: sameSite(cfg.Cookie.SameSite),
		},
		DisableHttpOnly: !cfg.Cookie.HttpOnly,
		IdleTimeout:     cfg.Cookie.IdleTimeout,
		Logger:          logger.Named("sessions"),
		Metrics:         metrics,
	}
	if len(cfg.Cookie.Secrets) > 0 {
		secrets := make([][]byte, 0, len(cfg.Cookie.Secrets))
		for _, secret := range cfg.Cookie.Secrets {
			secrets = append(secrets, []byte(secret))
		}
		options.Codecs = sessionstore.CodecsFromSecrets(cfg.Cookie.MaxAge, secrets...)
	}
	return sessionstore.New(db, options)
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteDefaultMode
}

// newHandler returns the demo application handler.
func newHandler(store *sessionstore.Store, gatherer prometheus.Gatherer, logger hclog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		session, err := store.Session(r)
		if err != nil {
			sessionError(w, logger, err)
			return
		}
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			sessionError(w, logger, err)
			return
		}
		fmt.Fprintln(w, "logged out")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		session, err := store.Session(r)
		if err != nil {
			sessionError(w, logger, err)
			return
		}
		visits := visitCount(session.Values["visits"]) + 1
		session.Values["visits"] = visits
		if session.IsNew {
			session.Values["first_visit"] = time.Now().UTC().Format(time.RFC3339)
		}
		if err := session.Save(r, w); err != nil {
			sessionError(w, logger, err)
			return
		}
		fmt.Fprintf(w, "visits: %d\n", visits)
	})
	return mux
}

// visitCount converts a stored counter, which is a float64 once it
// has been through JSON.
func visitCount(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func sessionError(w http.ResponseWriter, logger hclog.Logger, err error) {
	logger.Error("session store unavailable", "error", err)
	http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
}

// runServer serves HTTP until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, server *http.Server, logger hclog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}
