package rpc

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// Server handles HTTP JSON-RPC requests for the offer engine.
type Server struct {
	registry *MethodRegistry
	service  *Service
	logger   *log.Logger
	timeout  time.Duration
}

// NewServer builds a server over service with all methods registered.
func NewServer(service *Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[rpc] ", log.LstdFlags)
	}
	s := &Server{
		registry: NewMethodRegistry(),
		service:  service,
		logger:   logger,
		timeout:  30 * time.Second,
	}
	s.registerAllMethods()
	return s
}

// Methods returns the registered method names.
func (s *Server) Methods() []string { return s.registry.List() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeResponse(w, nil, nil, errParse(err.Error()))
		return
	}
	defer r.Body.Close()

	var request JsonRpcRequest
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, nil, errParse(err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, request.ID, nil, &RpcError{Code: CodeInvalidRequest, Message: "missing method"})
		return
	}

	handler, ok := s.registry.Get(request.Method)
	if !ok {
		s.writeResponse(w, request.ID, nil, errMethodNotFound(request.Method))
		return
	}

	ctx := &RpcContext{
		Context:  r.Context(),
		Role:     s.roleFor(request.Params),
		ClientIP: clientIP(r),
	}
	if handler.RequiredRole() > ctx.Role {
		s.writeResponse(w, request.ID, nil, errUnauthorized("method requires the owner account"))
		return
	}

	result, rpcErr := handler.Handle(ctx, request.Params)
	if rpcErr != nil {
		s.logger.Printf("%s from %s: %s", request.Method, ctx.ClientIP, rpcErr.Message)
	}
	s.writeResponse(w, request.ID, result, rpcErr)
}

// roleFor grants RoleAdmin when the request is made as the configured
// owner account. The daemon trusts its callers to be who they claim;
// it is meant to sit behind an authenticating proxy.
func (s *Server) roleFor(params json.RawMessage) Role {
	var peek struct {
		Account string `json:"account"`
	}
	if len(params) > 0 && json.Unmarshal(params, &peek) == nil && peek.Account == s.service.Owner {
		return RoleAdmin
	}
	return RoleUser
}

func (s *Server) writeResponse(w http.ResponseWriter, id interface{}, result interface{}, rpcErr *RpcError) {
	resp := JsonRpcResponse{JsonRpc: "2.0", Result: result, Error: rpcErr, ID: id}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ListenAndServe blocks serving RPC on addr until the listener fails
// or shutdownCh closes.
func (s *Server) ListenAndServe(addr string, shutdownCh <-chan struct{}) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	s.logger.Printf("listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-shutdownCh:
		return httpServer.Close()
	}
}
