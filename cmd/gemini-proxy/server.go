package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/zsjsll/gemini-proxy/cmd"
	"github.com/zsjsll/gemini-proxy/credential"
	"github.com/zsjsll/gemini-proxy/frontend"
	"github.com/zsjsll/gemini-proxy/health"
	"github.com/zsjsll/gemini-proxy/metrics"
	"github.com/zsjsll/gemini-proxy/proxy"
	"github.com/zsjsll/gemini-proxy/proxyprotocol"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func provideLogger(lc fx.Lifecycle, config *cmd.Config) (*zap.Logger, error) {
	logger, err := cmd.NewLogger(config, os.Stdout)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Syncing a terminal reports EINVAL on some platforms.
			logger.Sync()
			return nil
		},
	})

	return logger, nil
}

func provideCollectors() *metrics.Collectors {
	return metrics.New()
}

func provideUpstream(config *cmd.Config) (*proxy.Upstream, error) {
	return proxy.ParseUpstream(config.UpstreamURL)
}

func provideTransport(lc fx.Lifecycle, config *cmd.Config) (http.RoundTripper, error) {
	transport, err := proxy.NewTransport(proxy.TransportOptions{
		DialTimeout:           config.DialTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		IdleConnTimeout:       config.IdleConnTimeout,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			transport.CloseIdleConnections()
			return nil
		},
	})

	return transport, nil
}

type proxyHandlerParams struct {
	fx.In

	Config    *cmd.Config
	Upstream  *proxy.Upstream
	Transport http.RoundTripper
	Metrics   *metrics.Collectors
	Logger    *zap.Logger
}

// provideProxyHandler builds the handler served on the proxy listener.
func provideProxyHandler(p proxyHandlerParams) http.Handler {
	return newProxyHandler(p.Config, &proxy.Handler{
		Upstream:  p.Upstream,
		Transport: p.Transport,
		Selector:  credential.Random,
		Metrics:   p.Metrics,
		Logger:    p.Logger.Named("proxy"),
	})
}

func newProxyHandler(config *cmd.Config, p http.Handler) http.Handler {
	return chimw.RequestID(&frontend.Handler{
		Proxy: p,
		Interceptors: []frontend.ConditionalHandler{
			&frontend.InfoHandler{Message: config.InfoMessage},
		},
	})
}

// newAdminRouter builds the handler served on the admin listener.
func newAdminRouter(
	collectors *metrics.Collectors,
	checker health.Checker,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/metrics", collectors.Handler())
	r.Method(http.MethodGet, "/healthz", &health.HTTPHandler{
		Checker: checker,
		Logger:  logger,
	})

	return r
}

type serverParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *cmd.Config
	Handler    http.Handler
	Metrics    *metrics.Collectors
	Logger     *zap.Logger
}

func registerServers(p serverParams) error {
	proxyServer := &http.Server{
		Addr:              ":" + p.Config.Port,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(p.Logger.Named("http")),
	}

	if p.Config.TLSEnabled() {
		certificate, err := tls.LoadX509KeyPair(p.Config.ServerCertificate, p.Config.ServerKey)
		if err != nil {
			return err
		}

		proxyServer.Handler = p.Handler
		proxyServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{certificate},
			NextProtos:   []string{"h2", "http/1.1"},
			MinVersion:   tls.VersionTLS12,
		}
		if err := http2.ConfigureServer(proxyServer, nil); err != nil {
			return err
		}
	} else {
		proxyServer.Handler = h2c.NewHandler(p.Handler, &http2.Server{})
	}

	var adminServer *http.Server
	if p.Config.AdminPort != "" {
		checkClient := health.NewClient(p.Config.ProxyProtocol)
		checkClient.Timeout = p.Config.CheckTimeout

		adminServer = &http.Server{
			Addr:              ":" + p.Config.AdminPort,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          zap.NewStdLog(p.Logger.Named("admin")),
			Handler: newAdminRouter(
				p.Metrics,
				&health.HTTPChecker{
					Address: ":" + p.Config.Port,
					TLS:     p.Config.TLSEnabled(),
					Client:  checkClient,
				},
				p.Logger.Named("health"),
			),
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			listener, err := net.Listen("tcp", proxyServer.Addr)
			if err != nil {
				return err
			}

			if p.Config.ProxyProtocol {
				listener = proxyprotocol.NewListener(listener)
			}

			p.Logger.Info(
				"proxy listening",
				zap.String("version", version),
				zap.String("addr", listener.Addr().String()),
				zap.String("upstream", p.Config.UpstreamURL),
				zap.Bool("tls", p.Config.TLSEnabled()),
				zap.Bool("proxyProtocol", p.Config.ProxyProtocol),
			)

			go serve(p, "proxy", func() error {
				if proxyServer.TLSConfig != nil {
					return proxyServer.ServeTLS(listener, "", "")
				}
				return proxyServer.Serve(listener)
			})

			if adminServer != nil {
				adminListener, err := net.Listen("tcp", adminServer.Addr)
				if err != nil {
					return multierr.Append(err, listener.Close())
				}

				p.Logger.Info("admin listening", zap.String("addr", adminListener.Addr().String()))

				go serve(p, "admin", func() error {
					return adminServer.Serve(adminListener)
				})
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("servers stopping")

			err := proxyServer.Shutdown(ctx)
			if adminServer != nil {
				err = multierr.Append(err, adminServer.Shutdown(ctx))
			}

			return err
		},
	})

	return nil
}

// serve runs a server until it is shut down, stopping the application if it
// fails.
func serve(p serverParams, name string, run func() error) {
	if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.Logger.Error("server failed", zap.String("server", name), zap.Error(err))
		p.Shutdowner.Shutdown(fx.ExitCode(1))
	}
}
