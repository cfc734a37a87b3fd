package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mahalanet/mahala/src/ledger"
	"github.com/mahalanet/mahala/src/node"
)

// Node is the part of node.Node the service reads from.
type Node interface {
	ID() string
	GetStats() map[string]string
	GetPeers() []string
	GetConsensusStatus() node.ConsensusStatus
	GetDistributionStatus() node.DistributionStatus
	GetAccount(accountID string) (ledger.Account, error)
}

// Service ...
type Service struct {
	bindAddress string
	node        Node
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:              bindAddress,
		Handler:           service.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Mahala API handlers")
	s.mux.HandleFunc("/health", s.makeHandler(s.GetHealth))
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/consensus/status", s.makeHandler(s.GetConsensusStatus))
	s.mux.HandleFunc("/distribution/status", s.makeHandler(s.GetDistributionStatus))
	s.mux.HandleFunc("/accounts/", s.makeHandler(s.GetAccount))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the http.Handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call. It returns nil after
// Shutdown.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Mahala API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
		return err
	}

	return nil
}

// Shutdown stops the HTTP server.
func (s *Service) Shutdown() error {
	return s.server.Close()
}

// GetHealth ...
func (s *Service) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "UP",
		"nodeId": s.node.ID(),
	})
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetStats())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	peers := s.node.GetPeers()
	if peers == nil {
		peers = []string{}
	}
	writeJSON(w, http.StatusOK, peers)
}

// GetConsensusStatus ...
func (s *Service) GetConsensusStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetConsensusStatus())
}

// GetDistributionStatus ...
func (s *Service) GetDistributionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetDistributionStatus())
}

// GetAccount serves /accounts/{id} and /accounts/{id}/balance.
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	param := strings.Trim(r.URL.Path[len("/accounts/"):], "/")

	parts := strings.Split(param, "/")
	if parts[0] == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "balance") {
		http.NotFound(w, r)
		return
	}

	account, err := s.node.GetAccount(parts[0])
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		s.logger.WithError(err).Errorf("Retrieving account %s", parts[0])
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(parts) == 2 {
		writeJSON(w, http.StatusOK, balanceView{
			AccountID: account.ID,
			Balance:   account.Balance.String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, newAccountView(account))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
