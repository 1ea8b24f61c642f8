/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command docsubmit-demo signs and submits a batch of random documents to the remote API
// re-attempting the ones that are rejected because the request limit of the window is reached.
//
// Configuration is read from the YAML file specified in DEMO_CONFIG (optional),
// any value may be overridden by the environment variables with the "DEMO_" prefix
// (e.g. DEMO_DOCSUBMIT_REQUESTLIMIT=5).
package main

import (
	"context"
	"errors"
	"fmt"
	golog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-docsubmit/config"
	"github.com/acronis/go-docsubmit/docsubmit"
	"github.com/acronis/go-docsubmit/log"
	"github.com/acronis/go-docsubmit/retry"
	"github.com/acronis/go-docsubmit/signing"
)

const envVarsPrefix = "demo"

func main() {
	if err := runApp(); err != nil {
		golog.Fatal(err)
	}
}

func runApp() error {
	cfg, err := loadAppConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Demo.MockAPI {
		apiURL, closeMockAPI, mockErr := startMockAPI(logger)
		if mockErr != nil {
			return fmt.Errorf("start mock API: %w", mockErr)
		}
		defer closeMockAPI()
		cfg.DocSubmit.API.URL = apiURL
	}

	client, err := docsubmit.New(cfg.DocSubmit, signing.NewLoggingSigner(logger), docsubmit.Opts{
		Logger:           logger,
		MetricsNamespace: "docsubmit",
	})
	if err != nil {
		return fmt.Errorf("create document submission client: %w", err)
	}
	client.MustRegisterMetrics()
	defer client.UnregisterMetrics()

	if cfg.Demo.MetricsAddress != "" {
		closeMetrics := serveMetrics(cfg.Demo.MetricsAddress, logger)
		defer closeMetrics()
	}

	client.Start()
	submitted := submitDocuments(ctx, client, cfg, logger)
	logger.Info("documents are submitted", log.Int("submitted", submitted), log.Int("total", cfg.Demo.Documents))

	// Shutdown gets its own context, accepted submissions should have a chance to complete after SIGINT.
	return client.Shutdown(context.Background())
}

func submitDocuments(ctx context.Context, client *docsubmit.Client, cfg *AppConfig, logger log.FieldLogger) int {
	retryPolicy := retry.NewConstantBackoffPolicy(cfg.DocSubmit.WindowDuration, cfg.Demo.MaxRetries)
	submitted := 0
	for i := 0; i < cfg.Demo.Documents; i++ {
		doc := docsubmit.Document{Value: uuid.NewString()}
		signature := "+" + strconv.Itoa(i)
		err := retry.DoWithRetry(ctx, retryPolicy, retry.OnErrors(docsubmit.ErrAdmissionRejected),
			retry.LogNotify(logger.With(log.String("document_value", doc.Value)), "submission will be retried in the next window"),
			func(ctx context.Context) error {
				submissionID, err := client.CreateDocumentAndSign(ctx, doc, signature)
				if err == nil {
					logger.Debug("document is accepted", log.String("document_value", doc.Value),
						log.SubmissionID(submissionID))
				}
				return err
			})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, docsubmit.ErrShutdownInProgress) {
				logger.Warn("submitting is interrupted", log.Error(err))
				return submitted
			}
			logger.Error("document is not submitted", log.String("document_value", doc.Value), log.Error(err))
			continue
		}
		submitted++
	}
	return submitted
}

// startMockAPI starts a local HTTP server which accepts every document.
func startMockAPI(logger log.FieldLogger) (apiURL string, closeFn func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: newMockAPIRouter(logger), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("mock API server failed", log.Error(serveErr))
		}
	}()
	logger.Infof("mock API is listening on %s", ln.Addr())
	return "http://" + ln.Addr().String() + "/mock-api", func() { _ = srv.Close() }, nil
}

// newMockAPIRouter creates a router that accepts every document POSTed to /mock-api.
func newMockAPIRouter(logger log.FieldLogger) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Method(http.MethodPost, "/mock-api", http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		logger.Debug("mock API received document", log.String("request_id", chimiddleware.GetReqID(r.Context())))
		rw.WriteHeader(http.StatusOK)
	}))
	return router
}

func serveMetrics(addr string, logger log.FieldLogger) (closeFn func()) {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("metrics are served on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Error(err))
		}
	}()
	return func() { _ = srv.Close() }
}

func loadAppConfig() (*AppConfig, error) {
	cfgLoader := config.NewDefaultLoader(envVarsPrefix)
	cfg := NewAppConfig()
	path := os.Getenv(strings.ToUpper(envVarsPrefix) + "_CONFIG")
	return cfg, cfgLoader.LoadFromFileIfExists(path, config.DataTypeYAML, cfg.Log, cfg.DocSubmit, cfg.Demo)
}
