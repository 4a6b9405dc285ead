package app

import (
	"github.com/go-chi/chi/v5"

	loghandler "cityfix/internal/auditlog/handler"
	logservice "cityfix/internal/auditlog/service"
	"cityfix/internal/auditlog/sink"
	logstore "cityfix/internal/auditlog/store"
	"cityfix/internal/platform/broker"
	"cityfix/internal/platform/postgres"
	reporthandler "cityfix/internal/report/handler"
	reportservice "cityfix/internal/report/service"
	reportstore "cityfix/internal/report/store"
	"cityfix/internal/user/counter"
	userhandler "cityfix/internal/user/handler"
	userservice "cityfix/internal/user/service"
	userstore "cityfix/internal/user/store"
	"cityfix/pkg/platform/events"
	"cityfix/pkg/platform/events/consumer"
)

// Consumer binds a queue to the handler that drains it.
type Consumer struct {
	Queue   string
	Handler broker.Handler
}

// Module is one service's contribution to a process.
type Module struct {
	Name      string
	Routes    func(r chi.Router)
	Topology  broker.Topology
	Consumers []Consumer
}

// ReportModule serves /reports and publishes report.created.
func ReportModule(i *Infra) Module {
	var (
		store reportservice.Store
		tx    reportservice.TxRunner
	)
	if i.DB != nil {
		store, tx = reportstore.NewPostgres(i.DB), postgres.NewTxRunner(i.DB)
	} else {
		mem := reportstore.NewInMemory()
		store, tx = mem, mem
	}

	names := i.Config.Broker.Names
	svc := reportservice.New(store, tx, i.Critical(), i.AuditTrail(),
		reportservice.WithLogger(i.Logger),
		reportservice.WithMetrics(i.Metrics),
		reportservice.WithReportsExchange(names.ReportsExchange),
	)
	return Module{
		Name:     "report-service",
		Routes:   reporthandler.New(svc, i.Logger).Register,
		Topology: names.ReportServiceTopology(),
	}
}

// UserModule serves /users and keeps reports_count current.
func UserModule(i *Infra) Module {
	var store interface {
		userservice.Store
		counter.Store
	}
	if i.DB != nil {
		store = userstore.NewPostgres(i.DB)
	} else {
		store = userstore.NewInMemory()
	}

	svc := userservice.New(store, i.JWT, i.AuditTrail(),
		userservice.WithLogger(i.Logger),
		userservice.WithMetrics(i.Metrics),
		userservice.WithTokenTTL(i.Config.Auth.TokenTTL),
	)
	h := userhandler.New(svc, i.Logger, userhandler.CookieConfig{
		Name:   i.Config.Auth.CookieName,
		Secure: i.Config.Auth.CookieSecure,
	})

	names := i.Config.Broker.Names
	router := consumer.NewRouter(i.Logger)
	router.Register(events.RoutingKeyReportCreated, counter.New(store, i.Logger, i.Metrics))
	return Module{
		Name:      "user-service",
		Routes:    h.Register,
		Topology:  names.UserServiceTopology(),
		Consumers: []Consumer{{Queue: names.UserCounterQueue, Handler: router}},
	}
}

// LogModule stores audit envelopes and serves /logs.
func LogModule(i *Infra) Module {
	var store interface {
		sink.Store
		logservice.Store
	}
	if i.DB != nil {
		store = logstore.NewPostgres(i.DB)
	} else {
		store = logstore.NewInMemory()
	}

	svc := logservice.New(store, logservice.WithLogger(i.Logger))
	names := i.Config.Broker.Names
	router := consumer.NewRouter(i.Logger)
	router.Register(events.AuditBindingPattern, sink.New(store, i.Logger, i.Metrics))
	return Module{
		Name:      "log-service",
		Routes:    loghandler.New(svc, i.Logger, i.Config.LogPassword).Register,
		Topology:  names.LogServiceTopology(),
		Consumers: []Consumer{{Queue: names.AuditLogsQueue, Handler: router}},
	}
}
