// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/profiler"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/otp"
	"github.com/agrofix/storefront/session"
	"github.com/agrofix/storefront/storage"
)

const (
	port              = "8080"
	cookieMaxAge      = 60 * 60 * 48
	defaultAPITimeout = 10 * time.Second

	cookiePrefix    = "shop_"
	cookieSessionID = cookiePrefix + "session-id"
)

type ctxKeySessionID struct{}

type frontendServer struct {
	baseURL string

	api     *api.Client
	store   storage.Store
	decoder *session.Decoder
	otp     otp.Verifier

	locks   sessionLocks
	pending pendingRegistrations
}

func main() {
	ctx := context.Background()
	log := newLogger()

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))

	if os.Getenv("ENABLE_TRACING") == "1" {
		log.Info("Tracing enabled.")
		tp := initTracing(log)
		defer tp.Shutdown(ctx)
	} else {
		log.Info("Tracing disabled.")
	}

	if os.Getenv("ENABLE_PROFILER") == "1" {
		log.Info("Profiling enabled.")
		go initProfiling(log, "storefront", "1.0.0")
	} else {
		log.Info("Profiling disabled.")
	}

	apiTimeout := defaultAPITimeout
	if v := os.Getenv("API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid API_TIMEOUT %q: %v", v, err)
		}
		apiTimeout = d
	}

	storeCfg := storage.Config{Backend: os.Getenv("STORAGE_BACKEND")}
	switch storeCfg.Backend {
	case "mongo":
		mustMapEnv(&storeCfg.MongoURL, "MONGO_URL")
		storeCfg.MongoDatabase = os.Getenv("MONGO_DATABASE")
	case "mysql":
		mustMapEnv(&storeCfg.MySQLDSN, "MYSQL_DSN")
	}
	store, err := storage.Open(ctx, storeCfg)
	if err != nil {
		log.Fatalf("could not open %q storage: %v", storeCfg.Backend, err)
	}
	defer store.Close(ctx)

	decoder := session.NewDecoder(os.Getenv("TOKEN_SECRET"))
	if !decoder.Verifies() {
		log.Warn("TOKEN_SECRET not set: session tokens are decoded without signature verification")
	}

	svc := &frontendServer{
		baseURL: os.Getenv("BASE_URL"),
		api:     api.New(os.Getenv("API_URL"), apiTimeout),
		store:   store,
		decoder: decoder,
		otp:     otp.Mock{},
	}
	log.Infof("using API at %s", svc.api.BaseURL())

	srvPort := port
	if os.Getenv("PORT") != "" {
		srvPort = os.Getenv("PORT")
	}
	addr := os.Getenv("LISTEN_ADDR")

	server := newHTTPServer(addr+":"+srvPort, svc.handler(log))

	go func() {
		log.Infof("starting server on %s:%s", addr, srvPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithField("error", err).Error("forced shutdown")
	}
}

// newHTTPServer sets no WriteTimeout. A checkout runs one API call per cart
// line and must still be able to write its result afterwards.
func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = logrus.DebugLevel
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.Level = lvl
	}
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
	return log
}

// handler builds the router and wraps it in the middleware chain.
func (fe *frontendServer) handler(log *logrus.Logger) http.Handler {
	baseUrl := fe.baseURL
	r := mux.NewRouter()
	r.HandleFunc(baseUrl+"/", fe.withVisitor(fe.homeHandler)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/products", fe.withVisitor(fe.productsHandler)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/products", fe.withVisitor(fe.addProductHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart", fe.withVisitor(fe.viewCartHandler)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/cart", fe.withLockedVisitor(fe.addToCartHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/update", fe.withLockedVisitor(fe.updateCartItemHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/remove", fe.withLockedVisitor(fe.removeCartItemHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/empty", fe.withLockedVisitor(fe.emptyCartHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/checkout", fe.withLockedVisitor(fe.placeOrderHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/orders", fe.withVisitor(fe.orderHistoryHandler)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/login", fe.withVisitor(fe.loginPageHandler)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/login", fe.withLockedVisitor(fe.loginSubmitHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/logout", fe.withLockedVisitor(fe.logoutHandler)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(baseUrl+"/register", fe.withVisitor(fe.registerPageHandler)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/register", fe.withLockedVisitor(fe.registerSubmitHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/register/verify", fe.withLockedVisitor(fe.verifyOTPHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/register/resend", fe.withLockedVisitor(fe.resendOTPHandler)).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/robots.txt", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "User-agent: *\nDisallow: /") })
	r.HandleFunc(baseUrl+"/_healthz", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "ok") })

	var handler http.Handler = r
	handler = &logHandler{log: log, next: handler}       // add logging
	handler = ensureSessionID(handler)                   // add session ID
	handler = otelhttp.NewHandler(handler, "storefront") // add OTel tracing
	return handler
}

func initTracing(log logrus.FieldLogger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	log.Info("Tracing provider initialized (no exporter configured)")
	return tp
}

func initProfiling(log logrus.FieldLogger, service, version string) {
	for i := 1; i <= 3; i++ {
		log = log.WithField("retry", i)
		if err := profiler.Start(profiler.Config{
			Service:        service,
			ServiceVersion: version,
			// ProjectID must be set if not running on GCP.
			// ProjectID: "my-project",
		}); err != nil {
			log.Warnf("warn: failed to start profiler: %+v", err)
		} else {
			log.Info("started Stackdriver profiler")
			return
		}
		d := time.Second * 10 * time.Duration(i)
		log.Debugf("sleeping %v to retry initializing Stackdriver profiler", d)
		time.Sleep(d)
	}
	log.Warn("warning: could not initialize Stackdriver profiler after retrying, giving up")
}

func mustMapEnv(target *string, envKey string) {
	v := os.Getenv(envKey)
	if v == "" {
		panic(fmt.Sprintf("environment variable %q not set", envKey))
	}
	*target = v
}
