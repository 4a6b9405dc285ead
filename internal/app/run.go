package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "cityfix/internal/jwt_token"
	"cityfix/internal/platform/broker"
	"cityfix/internal/platform/httpserver"
	authmw "cityfix/pkg/platform/middleware/auth"
	"cityfix/pkg/platform/middleware/metadata"
	"cityfix/pkg/platform/middleware/requestlog"
	"cityfix/pkg/platform/middleware/requesttime"
)

// NewRouter mounts every module behind the shared middleware chain. The auth
// filter only attaches an identity; handlers decide whether one is required.
func NewRouter(i *Infra, modules ...Module) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestlog.Middleware(i.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if i.JWT != nil {
		r.Use(authmw.Authenticate(jwttoken.NewJWTServiceAdapter(i.JWT), i.Config.Auth.CookieName, i.Logger))
	}

	r.Handle("/metrics", promhttp.HandlerFor(i.Registry, promhttp.HandlerOpts{}))
	for _, m := range modules {
		m.Routes(r)
	}
	return r
}

// Declare creates the union of the modules' topologies.
func Declare(ctx context.Context, i *Infra, modules ...Module) error {
	var t broker.Topology
	for _, m := range modules {
		t = t.Merge(m.Topology)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := i.Broker.Declare(ctx, t); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	return nil
}

// Consume drains every module's queues until ctx is done or one consumer
// fails.
func Consume(ctx context.Context, i *Infra, modules ...Module) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range modules {
		for _, c := range m.Consumers {
			g.Go(func() error {
				i.Logger.InfoContext(ctx, "consumer started", "module", m.Name, "queue", c.Queue)
				if err := i.Broker.Consume(ctx, c.Queue, c.Handler); err != nil {
					return fmt.Errorf("consume %s: %w", c.Queue, err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// Run declares the topology, then serves HTTP and consumes until ctx is done.
func Run(ctx context.Context, i *Infra, modules ...Module) error {
	if err := Declare(ctx, i, modules...); err != nil {
		return err
	}

	srv := httpserver.New(i.Config.Server.Addr, NewRouter(i, modules...))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, srv, i.Logger, i.Config.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return Consume(ctx, i, modules...)
	})
	return g.Wait()
}
