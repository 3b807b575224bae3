package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/karlseguin/ccache/v3"
	"github.com/tkrehbiel/statuslace/statusnet"
	"github.com/tkrehbiel/statuslace/storage"
	"github.com/tkrehbiel/statuslace/telemetry"
)

// Upstream is the StatusNet server being proxied
type Upstream interface {
	Host() string
	GetConfig(ctx context.Context) (*statusnet.ServerConfig, error)
	GetConversation(ctx context.Context, id string, paging statusnet.Paging) ([]statusnet.Status, error)
	ShowStatus(ctx context.Context, id string) (*statusnet.Status, error)
}

// ProxyService serves the StatusNet read endpoints from an upstream server,
// keeping what it fetched so it can answer when the upstream can't
type ProxyService struct {
	Config      Config
	Server      http.Server
	router      *mux.Router
	upstream    Upstream
	store       storage.Database // may be nil
	configCache *ccache.Cache[statusnet.ServerConfig]
}

// NewService creates an http service proxying the upstream.
// The store must already be open, or nil for no persistence.
func NewService(cfg Config, upstream Upstream, store storage.Database) *ProxyService {
	svc := &ProxyService{
		Config:      cfg,
		router:      mux.NewRouter(),
		upstream:    upstream,
		store:       store,
		configCache: ccache.New(ccache.Configure[statusnet.ServerConfig]().MaxSize(100)),
	}

	svc.addHandlers()

	svc.Server = http.Server{
		Handler:      svc.router,
		Addr:         cfg.Server.addr(),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
	return svc
}

func (s *ProxyService) addHandlers() {
	s.router.HandleFunc("/", RequestLogger{Handler: homeHandler}.ServeHTTP).Methods("GET")
	s.router.HandleFunc(statusnet.ConfigPath, RequestLogger{Handler: s.configHandler}.ServeHTTP).Methods("GET")
	s.router.HandleFunc(statusnet.ConversationPath, RequestLogger{Handler: s.conversationHandler}.ServeHTTP).Methods("GET")
	s.router.HandleFunc(statusnet.ShowStatusPath, RequestLogger{Handler: s.showStatusHandler}.ServeHTTP).Methods("GET")
}

// ServeHTTP makes the service usable as a handler without a listener
func (s *ProxyService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *ProxyService) ListenAndServe() error {
	if s.Config.Server.useTLS() {
		telemetry.Log("tls listener starting on %s", s.Server.Addr)
		return s.Server.ListenAndServeTLS(s.Config.Server.Certificate, s.Config.Server.PrivateKey)
	}
	telemetry.Log("http listener starting on %s", s.Server.Addr)
	return s.Server.ListenAndServe()
}

// Start listens in the background until Stop is called
func (s *ProxyService) Start() {
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error(err, "listener failed")
		}
	}()
}

// Stop waits for open requests to finish then closes the service
func (s *ProxyService) Stop(ctx context.Context) {
	if err := s.Server.Shutdown(ctx); err != nil {
		telemetry.Error(err, "shutting down listener")
	}
	s.Close()
}

// Close anything related to the service before exiting
func (s *ProxyService) Close() {
	s.configCache.Stop()
	telemetry.LogCounters()
}

func (s *ProxyService) configHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Increment("config_requests", 1)
	host := s.upstream.Host()
	item, err := s.configCache.Fetch(host, s.Config.Server.configTTL(), func() (statusnet.ServerConfig, error) {
		telemetry.Increment("config_fetches", 1)
		cfg, err := s.upstream.GetConfig(r.Context())
		if err != nil {
			return statusnet.ServerConfig{}, err
		}
		s.saveConfig(host, *cfg)
		return *cfg, nil
	})
	if err == nil {
		writeJSON(w, http.StatusOK, item.Value().JSON())
		return
	}

	telemetry.Error(err, "fetching config from [%s]", host)
	if stored := s.storedConfig(host); stored != nil {
		w.Header().Set("Warning", `110 - "Response is Stale"`)
		writeJSON(w, http.StatusOK, stored.JSON())
		return
	}
	upstreamError(w, r, err)
}

func (s *ProxyService) conversationHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Increment("conversation_requests", 1)
	id := mux.Vars(r)["id"]
	paging := statusnet.PagingFromQuery(r.URL.Query())
	if limit := s.Config.Server.MaxCount; limit > 0 && paging.Count > limit {
		paging.Count = limit
	}

	statuses, err := s.upstream.GetConversation(r.Context(), id, paging)
	if err == nil {
		s.saveStatuses(statuses)
		writeStatuses(w, statuses)
		return
	}

	telemetry.Error(err, "fetching conversation [%s]", id)
	if stored, ok := s.storedConversation(id, paging); ok {
		w.Header().Set("Warning", `110 - "Response is Stale"`)
		writeStatuses(w, stored)
		return
	}
	upstreamError(w, r, err)
}

func (s *ProxyService) showStatusHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Increment("status_requests", 1)
	id := mux.Vars(r)["id"]

	if s.store != nil {
		found, err := s.store.FindStatus(id)
		if err != nil {
			telemetry.Error(err, "database error")
		} else if found != nil {
			telemetry.Increment("status_store_hits", 1)
			writeJSON(w, http.StatusOK, []byte(found.Source))
			return
		}
	}

	status, err := s.upstream.ShowStatus(r.Context(), id)
	if err != nil {
		telemetry.Error(err, "fetching status [%s]", id)
		upstreamError(w, r, err)
		return
	}
	s.saveStatuses([]statusnet.Status{*status})
	writeJSON(w, http.StatusOK, status.JSON())
}

func (s *ProxyService) saveConfig(host string, cfg statusnet.ServerConfig) {
	if s.store == nil {
		return
	}
	row := storage.FromServerConfig(host, cfg)
	if err := s.store.SaveConfig(&row); err != nil {
		telemetry.Error(err, "database error")
	}
}

func (s *ProxyService) storedConfig(host string) *statusnet.ServerConfig {
	if s.store == nil {
		return nil
	}
	row, err := s.store.FindConfig(host)
	if err != nil {
		telemetry.Error(err, "database error")
		return nil
	}
	if row == nil {
		return nil
	}
	cfg, err := row.ToServerConfig()
	if err != nil {
		telemetry.Error(err, "decoding stored config")
		return nil
	}
	return &cfg
}

func (s *ProxyService) saveStatuses(statuses []statusnet.Status) {
	if s.store == nil {
		return
	}
	for _, st := range statuses {
		row := storage.FromStatus(st)
		if err := s.store.SaveStatus(&row); err != nil {
			telemetry.Error(err, "saving status [%s]", st.ID)
		}
	}
}

// storedConversation answers a conversation page from the store.
// ok is false when nothing of the conversation is stored.
func (s *ProxyService) storedConversation(id string, paging statusnet.Paging) (statuses []statusnet.Status, ok bool) {
	if s.store == nil {
		return nil, false
	}
	rows, err := s.store.GetConversation(id, 0)
	if err != nil {
		telemetry.Error(err, "database error")
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}
	statuses = make([]statusnet.Status, 0, len(rows))
	for _, row := range rows {
		st, err := row.ToStatus()
		if err != nil {
			telemetry.Error(err, "decoding stored status")
			continue
		}
		if !inPage(st.ID, paging) {
			continue
		}
		statuses = append(statuses, st)
		if paging.Count > 0 && len(statuses) == paging.Count {
			break
		}
	}
	return statuses, true
}

// inPage applies the since_id and max_id bounds.
// Bounds or ids that aren't numeric don't filter.
func inPage(id statusnet.ID, paging statusnet.Paging) bool {
	n, ok := id.Int()
	if !ok {
		return true
	}
	if since, ok := statusnet.ID(paging.SinceID).Int(); ok && n <= since {
		return false
	}
	if upper, ok := statusnet.ID(paging.MaxID).Int(); ok && n > upper {
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(b)
}

func writeStatuses(w http.ResponseWriter, statuses []statusnet.Status) {
	docs := make([]json.RawMessage, 0, len(statuses))
	for _, st := range statuses {
		docs = append(docs, st.JSON())
	}
	b, err := json.Marshal(docs)
	if err != nil {
		telemetry.Error(err, "marshaling statuses")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// upstreamError answers in the StatusNet error format.
// A 404 from the upstream stays a 404, anything else is a bad gateway.
func upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusBadGateway
	if sce, ok := statusnet.AsServiceCallError(err); ok && sce.StatusCode == http.StatusNotFound {
		code = http.StatusNotFound
	}
	b, _ := json.Marshal(struct {
		Error   string `json:"error"`
		Request string `json:"request"`
	}{
		Error:   err.Error(),
		Request: r.URL.Path,
	})
	writeJSON(w, code, b)
}

// RequestLogger tags each request with an id and logs it
type RequestLogger struct {
	Handler http.HandlerFunc
}

func (rl RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", requestID)
	telemetry.Request(r, "request %s", requestID)

	telemetry.Trace(headerLine(r.Header))

	rl.Handler(w, r)
}

// redactedHeaders carry credentials and are never logged
var redactedHeaders = []string{"Authorization", "Proxy-Authorization", "Signature", "Cookie"}

func headerLine(h http.Header) string {
	headers := make([]string, 0, len(h))
	for k, v := range h {
		value := strings.Join(v, ", ")
		for _, name := range redactedHeaders {
			if http.CanonicalHeaderKey(k) == name {
				value = "[redacted]"
			}
		}
		headers = append(headers, fmt.Sprintf("%s: %s", k, value))
	}
	sort.Strings(headers)
	return strings.Join(headers, " | ")
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Increment("home_requests", 1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><title>statuslace</title>
<body>
<p>This is statuslace, a read-through cache for the StatusNet API.
Try <a href="%s">the server config</a>.</p>
</body>
</html>`, statusnet.ConfigPath)
}
