package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.SessionMiddleware)
	r.Use(h.MetricsContext)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not-found"}` + "\n"))
	})

	// Shopper routes act for a member token or the anonymous session.
	shop := r.NewRoute().Subrouter()
	shop.Use(h.RequireSameOrigin)
	shop.Use(h.ResolveIdentity)
	shop.HandleFunc("/cart", h.GetCart).Methods("GET").Name("cart.show")
	shop.HandleFunc("/cart/lines", h.AddCartLine).Methods("POST").Name("cart.lines.add")
	shop.HandleFunc("/cart/shipping", h.SelectShippingMethod).Methods("PUT").Name("cart.shipping.select")
	shop.HandleFunc("/cart/discounts", h.ApplyDiscountCode).Methods("POST").Name("cart.discounts.apply")
	shop.HandleFunc("/checkout/session", h.CreateCheckoutSession).Methods("POST").Name("checkout.session.create")

	members := r.NewRoute().Subrouter()
	members.Use(h.RequireSameOrigin)
	members.Use(h.ResolveIdentity)
	members.Use(h.RequireMember)
	members.HandleFunc("/cart/merge", h.MergeCart).Methods("POST").Name("cart.merge")
	members.HandleFunc("/orders/{identifier}", h.GetOrder).Methods("GET").Name("orders.show")

	return r
}
