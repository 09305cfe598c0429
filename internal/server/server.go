package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"picstash/internal/blobstore"
	"picstash/internal/store"
)

const (
	apiTokenEnvKey    = "PICSTASH_API_TOKEN"
	allowRemoteEnvKey = "PICSTASH_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second

	// Ingestion is blocking work with decodes held in memory; cap how many
	// uploads run at once.
	ingestConcurrencyLimit = 4
)

// Options carries runtime settings into the server.
type Options struct {
	Version            string
	DBPath             string
	DataDir            string
	APIToken           string
	MaxUploadBytes     int64
	MultipartMaxMemory int64
	MaxDimension       int
	ThumbnailMaxEdge   int
	AllowDegenerate    bool
}

// Server wraps HTTP handlers for the picstash API.
type Server struct {
	addr          string
	service       *AssetService
	logger        *slog.Logger
	version       string
	dbPath        string
	dataDir       string
	apiToken      string
	maxUpload     int64
	multipartMem  int64
	ingestLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, records store.AssetStore, objects blobstore.Store, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	apiToken := strings.TrimSpace(opts.APIToken)
	if apiToken == "" {
		apiToken = strings.TrimSpace(os.Getenv(apiTokenEnvKey))
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	multipartMem := opts.MultipartMaxMemory
	if multipartMem <= 0 {
		multipartMem = 8 << 20
	}

	service := NewAssetService(records, objects, logger)
	service.ConfigureBounds(opts.MaxDimension, opts.ThumbnailMaxEdge, opts.AllowDegenerate)

	return &Server{
		addr:          addr,
		service:       service,
		logger:        logger,
		version:       opts.Version,
		dbPath:        opts.DBPath,
		dataDir:       opts.DataDir,
		apiToken:      apiToken,
		maxUpload:     maxUpload,
		multipartMem:  multipartMem,
		ingestLimiter: make(chan struct{}, ingestConcurrencyLimit),
	}
}

// Service exposes the orchestrator for embedding callers.
func (s *Server) Service() *AssetService {
	return s.service
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireIngestSlot(w http.ResponseWriter, r *http.Request) bool {
	select {
	case s.ingestLimiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent uploads"),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseIngestSlot() {
	select {
	case <-s.ingestLimiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
