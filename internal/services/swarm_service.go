package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainswarm/chainswarm-go/internal/config"
	"github.com/chainswarm/chainswarm-go/internal/ledger"
	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
	"github.com/chainswarm/chainswarm-go/internal/scanner"
	"github.com/chainswarm/chainswarm-go/internal/swarm"
)

// SwarmService drives the swarm: a scan loop discovers and shares
// opportunities and assigns the best one each cycle, while a slower loop runs
// the adaptive risk controller. Ledger and notifier are optional
// collaborators.
type SwarmService struct {
	cfg         *config.Config
	registry    *registry.Registry
	scanner     *scanner.Scanner
	coordinator *swarm.Coordinator
	ledger      *ledger.Ledger
	notifier    *Notifier
	scanParams  models.RiskParameters
	logger      *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	isRunning  bool
	lastScan   time.Time
	lastFound  int
	lastShared int
}

// SwarmServiceStatus is the status view exposed over the API.
type SwarmServiceStatus struct {
	Running    bool                `json:"running"`
	LastScan   time.Time           `json:"last_scan"`
	LastFound  int                 `json:"last_found"`
	LastShared int                 `json:"last_shared"`
	Swarm      swarm.SwarmState    `json:"swarm"`
	Agents     []swarm.AgentStatus `json:"agents"`
}

// NewSwarmService wires the service together. ledger and notifier may be nil.
func NewSwarmService(cfg *config.Config, reg *registry.Registry, sc *scanner.Scanner, coord *swarm.Coordinator, lg *ledger.Ledger, notifier *Notifier, logger *logrus.Logger) *SwarmService {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = logrus.New()
	}
	return &SwarmService{
		cfg:         cfg,
		registry:    reg,
		scanner:     sc,
		coordinator: coord,
		ledger:      lg,
		notifier:    notifier,
		scanParams:  cfg.Risk.Parameters(),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the scan and risk-control loops.
func (s *SwarmService) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("swarm service is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	scanInterval, err := time.ParseDuration(s.cfg.Swarm.ScanInterval)
	if err != nil || scanInterval <= 0 {
		scanInterval = 30 * time.Second
	}
	riskInterval, err := time.ParseDuration(s.cfg.Swarm.RiskUpdateInterval)
	if err != nil || riskInterval <= 0 {
		riskInterval = 5 * time.Minute
	}

	s.logger.WithFields(logrus.Fields{
		"scan_interval": scanInterval,
		"risk_interval": riskInterval,
		"agents":        s.coordinator.AgentCount(),
		"chains":        s.registry.Len(),
	}).Info("Starting swarm service")

	s.wg.Add(1)
	go s.scanLoop(scanInterval)

	s.wg.Add(1)
	go s.riskLoop(riskInterval)

	return nil
}

// Stop gracefully shuts down the loops.
func (s *SwarmService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.logger.Info("Stopping swarm service")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Swarm service stopped")
}

// IsRunning reports whether the loops are active.
func (s *SwarmService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current service and swarm state.
func (s *SwarmService) Status() SwarmServiceStatus {
	s.mu.RLock()
	status := SwarmServiceStatus{
		Running:    s.isRunning,
		LastScan:   s.lastScan,
		LastFound:  s.lastFound,
		LastShared: s.lastShared,
	}
	s.mu.RUnlock()

	status.Swarm = s.coordinator.State()
	status.Agents = s.coordinator.AgentStatuses()
	return status
}

func (s *SwarmService) scanLoop(interval time.Duration) {
	defer s.wg.Done()

	// First cycle runs immediately so the board is populated at startup.
	if err := s.runCycle(); err != nil {
		s.logger.WithError(err).Error("Initial scan cycle failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.runCycle(); err != nil {
				s.logger.WithError(err).Error("Scan cycle failed")
			}
		}
	}
}

func (s *SwarmService) riskLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.coordinator.UpdateRiskParams(s.coordinator.Snapshot())
		}
	}
}

// runCycle scans all chain pairs, shares the results, and assigns the best
// retained opportunity to an agent.
func (s *SwarmService) runCycle() error {
	started := time.Now()

	opportunities, err := s.scanner.FindOpportunities(s.ctx, s.registry, s.scanParams)
	if err != nil {
		return fmt.Errorf("opportunity scan failed: %w", err)
	}

	shared := 0
	for _, opp := range opportunities {
		if s.coordinator.ShareOpportunity(opp) {
			shared++
			if s.notifier != nil {
				s.notifier.NotifyOpportunity(s.ctx, opp)
			}
		}
	}

	s.mu.Lock()
	s.lastScan = time.Now()
	s.lastFound = len(opportunities)
	s.lastShared = shared
	s.mu.Unlock()

	if best, ok := s.coordinator.TakeBest(); ok {
		s.executeBest(best)
	}

	s.logger.WithFields(logrus.Fields{
		"duration_ms": time.Since(started).Milliseconds(),
		"found":       len(opportunities),
		"shared":      shared,
	}).Info("Scan cycle completed")
	return nil
}

func (s *SwarmService) executeBest(best models.ArbitrageOpportunity) {
	result, err := s.coordinator.CoordinateTrade(s.ctx, best)
	if err != nil {
		s.logger.WithError(err).WithField("route", best.Route()).Warn("Trade not completed")
		return
	}
	if result == nil {
		return
	}

	if s.notifier != nil {
		s.notifier.NotifyTrade(s.ctx, best, result)
	}
	if s.ledger != nil {
		if _, err := s.ledger.RecordTransaction(s.ctx, best, "", result); err != nil {
			s.logger.WithError(err).Error("Failed to record executed trade")
		}
	}
}
