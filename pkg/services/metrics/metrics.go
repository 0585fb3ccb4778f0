// Package metrics provides the Prometheus and pprof side servers of
// the gateway.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/tokenbrowser/ethgateway/pkg/config"
	"go.uber.org/zap"
)

// Service serves metrics over one or more configured endpoints.
type Service struct {
	servers     []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
}

// NewService configures a new service instance with the given servers.
func NewService(name string, servers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	return &Service{
		servers:     servers,
		config:      cfg,
		log:         log,
		serviceType: name,
	}
}

// Start runs the http service with the exposed endpoints on the
// configured ports.
func (ms *Service) Start() {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled", zap.String("service", ms.serviceType))
		return
	}
	for _, srv := range ms.servers {
		ms.log.Info("service is running", zap.String("service", ms.serviceType), zap.String("endpoint", srv.Addr))
		go func(srv *http.Server) {
			err := srv.ListenAndServe()
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Warn("service couldn't start on configured port",
					zap.String("service", ms.serviceType), zap.String("endpoint", srv.Addr), zap.Error(err))
			}
		}(srv)
	}
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	for _, srv := range ms.servers {
		ms.log.Info("shutting down service", zap.String("service", ms.serviceType), zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
}
