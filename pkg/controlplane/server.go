package controlplane

import (
	"net/http"
	"sync"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/cloudflare"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const configNotAvailable = "Configuration not available"

type Options struct {
	Supervisor Supervisor

	// Cloud is nil when no Cloudflare credentials are configured
	Cloud       CloudAPI
	Credentials cloudflare.Credentials

	// NewCloud builds a client for credentials posted to /api/config
	NewCloud func(credentials cloudflare.Credentials) CloudAPI

	// Gatherer serves /metrics when set
	Gatherer prometheus.Gatherer

	// BinaryPath is shown in the suggested run command
	BinaryPath string

	// LocalIP defaults to DetectLocalIP
	LocalIP func() string

	// RequestTimeout bounds each request; zero disables it
	RequestTimeout time.Duration
}

// Server exposes the supervisor and the Cloudflare setup flow over HTTP
type Server struct {
	supervisor Supervisor
	newCloud   func(credentials cloudflare.Credentials) CloudAPI

	// replaced together when credentials are saved at runtime
	mu          sync.RWMutex
	cloud       CloudAPI
	credentials cloudflare.Credentials

	binaryPath string
	localIP    func() string
	logger     logging.Logger
	router     chi.Router
}

func NewServer(options Options, logger logging.Logger) *Server {
	if options.LocalIP == nil {
		options.LocalIP = DetectLocalIP
	}
	if options.BinaryPath == "" {
		options.BinaryPath = "cloudflared"
	}
	if options.NewCloud == nil {
		options.NewCloud = func(credentials cloudflare.Credentials) CloudAPI {
			return cloudflare.NewClient(credentials, cloudflare.Options{}, logger)
		}
	}

	s := &Server{
		supervisor:  options.Supervisor,
		newCloud:    options.NewCloud,
		cloud:       options.Cloud,
		credentials: options.Credentials,
		binaryPath:  options.BinaryPath,
		localIP:     options.LocalIP,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	if options.RequestTimeout > 0 {
		r.Use(chimw.Timeout(options.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	if options.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handleSaveConfig)
		r.Get("/network-info", s.handleNetworkInfo)

		r.Route("/tunnels", func(r chi.Router) {
			r.Get("/", s.handleListTunnels)
			r.Post("/", s.handleCreateTunnel)
			r.Get("/running", s.handleRunningTunnels)
			r.Post("/stop-all", s.handleStopAll)
			r.Post("/cleanup", s.handleCleanupTunnels)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteTunnel)
				r.Post("/start", s.handleStartTunnel)
				r.Post("/stop", s.handleStopTunnel)
				r.Get("/status", s.handleTunnelStatus)
				r.Get("/logs", s.handleTunnelLogs)
			})
		})

		r.Post("/subdomains/cleanup", s.handleCleanupSubdomain)
		r.Get("/status/{subdomain}", s.handleVerifySubdomain)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// cloudAPI returns the current Cloudflare client, nil when unconfigured
func (s *Server) cloudAPI() CloudAPI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloud
}

func (s *Server) currentCredentials() cloudflare.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentials
}

func (s *Server) setCloud(cloud CloudAPI, credentials cloudflare.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloud = cloud
	s.credentials = credentials
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
