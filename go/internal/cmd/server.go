package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/gamefloor/go/internal/gateway"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register operator API and floor websocket
	handler := gateway.NewHandler(services.Lifecycle, services.Settlements, services.Catalog, services.Floor, services.Hub)
	handler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", getEnv("PORT", "8090")),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
