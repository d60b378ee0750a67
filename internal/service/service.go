package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"radiator_control/internal/config"
	"radiator_control/internal/logger"
	"radiator_control/internal/metrics"
	"radiator_control/internal/models"
	"radiator_control/internal/protocol"
	"radiator_control/internal/repository"
	"radiator_control/internal/schedule"
	"radiator_control/internal/state"
)

var (
	// ErrTransportUnavailable means the broker could not be reached. It is
	// never folded into a default state.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrInvalidMode rejects empty modes and the reserved STATE query.
	ErrInvalidMode = errors.New("invalid mode")
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Correlator resolves STATE requests over the shared topic.
type Correlator interface {
	RequestStates(ctx context.Context, targets []string) (map[string]string, error)
}

// Dispatcher publishes mode commands.
type Dispatcher interface {
	ApplyMode(ctx context.Context, p ModeParams) (map[string]string, error)
}

// Monitoring exposes the last known state of the fleet.
type Monitoring interface {
	Refresh(ctx context.Context) (StatesView, error)
	Current(ctx context.Context) (StatesView, error)
}

// Devices is the radiator registry and its per-device options.
type Devices interface {
	Sync(ctx context.Context, seed []string) error
	ListDevices(ctx context.Context) ([]DeviceStatus, error)
	KnownNames(ctx context.Context) ([]string, error)
	Register(ctx context.Context, name, ipAddress string) (models.Device, error)
	Rename(ctx context.Context, oldName, newName string) error
	Remove(ctx context.Context, name string) error
	DisabledMap(ctx context.Context) (map[string]bool, error)
	SetDisabled(ctx context.Context, name string, disabled bool) (map[string]string, error)
}

// Planning reads and replaces the weekly schedule.
type Planning interface {
	Get(ctx context.Context) (schedule.Weekly, error)
	Replace(ctx context.Context, w schedule.Weekly) (schedule.Weekly, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
}

// Scheduler runs the weekly planning loop until ctx is canceled.
type Scheduler interface {
	Run(ctx context.Context)
	Evaluate(ctx context.Context, minute time.Time) []string
}

// Poller refreshes every device state periodically until ctx is canceled.
type Poller interface {
	Poll(ctx context.Context, every time.Duration)
}

type Service struct {
	Authorization
	Correlator
	Dispatcher
	Monitoring
	Devices
	Planning
	EventLog
	Scheduler
	Poller
}

// Deps carries what NewService wires together.
type Deps struct {
	Repos     *repository.Repository
	Transport Transport
	Store     *state.Store
	Metrics   *metrics.Metrics
	Log       *logger.Logger
	Config    *config.Config
}

func NewService(d Deps) (*Service, error) {
	cfg := d.Config
	format, err := protocol.ParseFormat(cfg.MQTT.WireFormat)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	if d.Store == nil {
		d.Store = state.NewStore()
	}

	wire := Wire{Topic: cfg.MQTT.Topic, Format: format}
	correlator := NewCorrelatorService(d.Transport, d.Store, d.Repos.Events, d.Metrics, d.Log, CorrelatorConfig{
		Wire:         wire,
		Timeout:      cfg.Protocol.Timeout,
		MaxAttempts:  cfg.Protocol.MaxAttempts,
		PollInterval: cfg.Protocol.PollInterval,
	})
	dispatcher := NewDispatcherService(d.Transport, d.Repos.Devices, d.Store, d.Repos.Events, d.Metrics, d.Log, wire)
	devices := NewDeviceService(d.Repos.Devices, d.Store, dispatcher, d.Repos.Events, d.Metrics, d.Log)

	return &Service{
		Authorization: NewAuthService(d.Repos.Auth, cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
		Correlator:    correlator,
		Dispatcher:    dispatcher,
		Monitoring:    NewMonitoringService(correlator, d.Transport, devices, d.Store),
		Devices:       devices,
		Planning:      NewPlanningService(d.Repos.Schedule, d.Repos.Events, d.Log),
		EventLog:      NewEventLogService(d.Repos.Events),
		Scheduler: NewSchedulerService(d.Repos.Schedule, dispatcher, d.Repos.Events, d.Metrics, d.Log, SchedulerConfig{
			Location:    loc,
			Idle:        cfg.Scheduler.IdleInterval,
			SettleDelay: cfg.Scheduler.SettleDelay,
		}),
		Poller: NewPollerService(correlator, devices, d.Log),
	}, nil
}
