package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

func main() {
	// Exemplo: injetando o middleware diretamente no seu webserver (sem o
	// binário gateway). Contador em memória, sem geo nem Redis.
	counters := infra.NewMemoryCounter()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	counters.StartJanitor(ctx)

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}` + "\n"))
	})

	h := http.Handler(mux)
	h = admission.Middleware(admission.Options{
		Pipeline: application.Pipeline{
			Counters:   counters,
			Classifier: domain.DefaultUserAgentClassifier(),
			Logger:     logger,
		},
		TrustProxyHeaders: true,
		Debug:             true,
		Logger:            logger,
	})(h)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{Max: 50})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
