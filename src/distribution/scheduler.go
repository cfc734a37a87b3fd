package distribution

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	cm "github.com/mahalanet/mahala/src/common"
	"github.com/mahalanet/mahala/src/ledger"
)

const (
	// DefaultDailyAmount is the amount credited to each account per day.
	DefaultDailyAmount = "10.0"

	// DefaultInterval is the period of the distribution loop.
	DefaultInterval = 24 * time.Hour
)

// Accounts is the part of the ledger the scheduler needs. CreditActive must
// refuse accounts deactivated after they were listed.
type Accounts interface {
	ListPersonalAccounts() []ledger.Account
	CreditActive(accountID string, amount decimal.Decimal) error
	Policy() ledger.Policy
}

// DayStore persists the last distribution day across restarts. ledger.Store
// implements it.
type DayStore interface {
	SetLastDistributionDay(day string) error
	LastDistributionDay() (string, error)
}

// Result reports what a call to Run did.
type Result struct {
	Day      Day
	Credited int
	Skipped  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLocation sets the time zone in which calendar days are computed.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

// WithTimerFactory replaces time.After as the source of ticks.
func WithTimerFactory(f func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.timerFactory = f
	}
}

// WithStore makes the last distribution day survive restarts.
func WithStore(store DayStore) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

// Scheduler runs the daily distribution. Runs are serialised: a tick never
// overlaps another tick or a manual call to Run.
type Scheduler struct {
	accounts Accounts
	amount   decimal.Decimal
	interval time.Duration

	now          func() time.Time
	loc          *time.Location
	timerFactory timerFactory
	store        DayStore

	runLock sync.Mutex

	dayLock sync.RWMutex
	lastDay Day

	controlTimer *controlTimer
	stateLock    sync.Mutex
	started      bool
	stopped      bool
	wg           sync.WaitGroup

	logger *logrus.Entry
}

// NewScheduler creates a Scheduler. The last distribution day starts as
// yesterday, unless a store provides one.
func NewScheduler(
	accounts Accounts,
	amount decimal.Decimal,
	interval time.Duration,
	logger *logrus.Entry,
	opts ...Option,
) *Scheduler {

	if interval <= 0 {
		interval = DefaultInterval
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	s := &Scheduler{
		accounts:     accounts,
		amount:       amount,
		interval:     interval,
		now:          time.Now,
		loc:          time.Local,
		timerFactory: time.After,
		logger:       logger.WithField("prefix", "distribution"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.controlTimer = newControlTimer(s.timerFactory)
	s.lastDay = DayOf(s.now().AddDate(0, 0, -1), s.loc)
	s.restore()

	return s
}

func (s *Scheduler) restore() {
	if s.store == nil {
		return
	}

	raw, err := s.store.LastDistributionDay()
	if err != nil {
		if !cm.IsStore(err, cm.KeyNotFound) {
			s.logger.WithError(err).Warn("Failed to read last distribution day")
		}
		return
	}

	day, err := ParseDay(raw)
	if err != nil {
		s.logger.WithField("day", raw).Warn("Ignoring invalid last distribution day")
		return
	}

	s.lastDay = day
}

// Start runs a distribution immediately and then once per interval until Stop
// is called. Calling Start more than once, or after Stop, has no effect.
func (s *Scheduler) Start() {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	s.Run()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.controlTimer.run(s.interval)
	}()
	go func() {
		defer s.wg.Done()
		s.loop()
	}()

	s.logger.WithFields(logrus.Fields{
		"amount":   s.amount.String(),
		"interval": s.interval,
	}).Info("Daily distribution started")
}

func (s *Scheduler) loop() {
	for {
		select {
		case <-s.controlTimer.tickCh:
			s.Run()
		case <-s.controlTimer.shutdownCh:
			return
		}
	}
}

// Stop prevents future ticks and waits for a tick in progress to finish. It is
// idempotent.
func (s *Scheduler) Stop() {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	s.controlTimer.shutdown()
	s.wg.Wait()

	if s.started {
		s.logger.Info("Daily distribution stopped")
	}
}

// Run performs the distribution for today unless it was already done.
func (s *Scheduler) Run() Result {
	s.runLock.Lock()
	defer s.runLock.Unlock()

	today := DayOf(s.now(), s.loc)

	if today == s.LastDistributionDay() {
		s.logger.WithField("day", today).Debug("Already distributed today")
		return Result{Day: today, Skipped: true}
	}

	policy := s.accounts.Policy()
	credited := 0

	for _, a := range s.accounts.ListPersonalAccounts() {
		if !a.Active || !policy.CanReceive(a) {
			continue
		}

		err := s.accounts.CreditActive(a.ID, s.amount)
		if err == ledger.ErrAccountInactive {
			s.logger.WithField("account", a.ID).Debug("Account deactivated before credit")
			continue
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"account": a.ID,
				"error":   err,
			}).Warn("Failed to credit account")
			continue
		}

		credited++
	}

	s.dayLock.Lock()
	s.lastDay = today
	s.dayLock.Unlock()

	if s.store != nil {
		if err := s.store.SetLastDistributionDay(today.String()); err != nil {
			s.logger.WithError(err).Error("Failed to persist last distribution day")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"day":      today,
		"amount":   s.amount.String(),
		"accounts": credited,
	}).Info("Distributed daily amount")

	return Result{Day: today, Credited: credited}
}

// DailyAmount ...
func (s *Scheduler) DailyAmount() decimal.Decimal {
	return s.amount
}

// Interval ...
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// LastDistributionDay ...
func (s *Scheduler) LastDistributionDay() Day {
	s.dayLock.RLock()
	defer s.dayLock.RUnlock()

	return s.lastDay
}

// HasDistributedToday ...
func (s *Scheduler) HasDistributedToday() bool {
	return DayOf(s.now(), s.loc) == s.LastDistributionDay()
}
