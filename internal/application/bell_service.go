package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

const (
	// SourceManual is the default source of operator triggered rings.
	SourceManual = "manual"
	// SourceScheduled tags rings stored by the scheduler tick.
	SourceScheduled = "scheduled"

	defaultRingSeconds = 3
	defaultRingTimeout = 3 * time.Second
)

// BellServiceConfig wires the collaborators of a BellService.
type BellServiceConfig struct {
	Schedules persistence.ScheduleRepository
	Commands  persistence.CommandQueue
	Siren     persistence.SirenTracker
	Engine    *recurrence.Engine
	DayCodes  recurrence.DayCodes
	// Ringer is optional; nil disables the outbound push.
	Ringer Ringer
	// LocalRinger is a host-attached siren, such as a GPIO relay, that
	// scheduled rings drive directly. It must not reach the network.
	LocalRinger Ringer
	RingTimeout time.Duration
	// Publisher is optional; nil disables event publishing.
	Publisher   EventPublisher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// BellService resolves device polls and issues rings.
type BellService struct {
	schedules   persistence.ScheduleRepository
	commands    persistence.CommandQueue
	siren       persistence.SirenTracker
	engine      *recurrence.Engine
	codes       recurrence.DayCodes
	ringer      Ringer
	localRinger Ringer
	ringTimeout time.Duration
	publisher   EventPublisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	validate    *validator.Validate

	tickMu    sync.Mutex
	lastFired string
}

// NewBellService constructs a BellService, filling defaults for optional fields.
func NewBellService(cfg BellServiceConfig) *BellService {
	if cfg.Engine == nil {
		cfg.Engine = recurrence.NewEngine(nil)
	}
	if cfg.DayCodes == (recurrence.DayCodes{}) {
		cfg.DayCodes = recurrence.DefaultDayCodes
	}
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = defaultRingTimeout
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BellService{
		schedules:   cfg.Schedules,
		commands:    cfg.Commands,
		siren:       cfg.Siren,
		engine:      cfg.Engine,
		codes:       cfg.DayCodes,
		ringer:      cfg.Ringer,
		localRinger: cfg.LocalRinger,
		ringTimeout: cfg.RingTimeout,
		publisher:   cfg.Publisher,
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		logger:      defaultLogger(cfg.Logger),
		validate:    newValidator(),
	}
}

func (s *BellService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BellService", operation, attrs...)
}

// Resolve computes the directive for a device poll. It never writes. Read
// failures degrade to safe defaults: no schedules, no pending command, siren
// off. The returned error joins every read failure and the directive is usable
// even when it is non-nil.
func (s *BellService) Resolve(ctx context.Context) (Directive, error) {
	if s == nil {
		return Directive{}, fmt.Errorf("BellService is nil")
	}

	now := s.engine.Local(s.now())
	at := recurrence.TimeOfDayOf(now)

	var errs []error
	today, err := s.schedules.ActiveFor(ctx, now.Weekday(), s.engine.Date(now))
	if err != nil {
		errs = append(errs, fmt.Errorf("read schedules: %w", err))
		today = nil
	}
	times := entryTimes(today)
	scheduleMatch := recurrence.MatchMinute(times, at) >= 0

	cmd, found, err := s.commands.Peek(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("read command: %w", err))
		found = false
	}
	// Any pending ring counts as manual, including one stored by the ticker.
	manualPending := found && cmd.Pending()

	sirenOn := false
	status, err := s.siren.GetSiren(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("read siren: %w", err))
	} else {
		sirenOn = status.IsOn
	}

	directive := Directive{
		CurrentTime:    at,
		CurrentDay:     s.codes.Code(now.Weekday()),
		ShouldActivate: scheduleMatch || manualPending,
		IsScheduled:    scheduleMatch && !manualPending,
		SirenOn:        sirenOn,
	}
	if idx := recurrence.NextAfter(times, at); idx >= 0 {
		next := times[idx]
		directive.NextAlarm = &next
	}
	if manualPending {
		directive.CommandID = cmd.ID
	}

	joined := errors.Join(errs...)
	if joined != nil {
		s.loggerWith(ctx, "Resolve").WarnContext(ctx, "poll resolved with degraded reads", "error", joined)
	}
	return directive, joined
}

// TickScheduled stores a scheduled ring when the current minute matches an
// active entry. Each matched minute fires at most once per process, and
// nothing is stored while another ring is pending. A configured local ringer
// sounds with the stored ring; the network push stays manual only. It reports
// whether a ring was issued.
func (s *BellService) TickScheduled(ctx context.Context) (issued bool, err error) {
	if s == nil {
		return false, fmt.Errorf("BellService is nil")
	}

	now := s.engine.Local(s.now())
	at := recurrence.TimeOfDayOf(now)

	today, err := s.schedules.ActiveFor(ctx, now.Weekday(), s.engine.Date(now))
	if err != nil {
		return false, storageError("read schedules", err)
	}
	idx := recurrence.MatchMinute(entryTimes(today), at)
	if idx < 0 {
		return false, nil
	}
	entry := today[idx]
	minuteKey := recurrence.DateKey(now) + " " + at.String()

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.lastFired == minuteKey {
		return false, nil
	}

	logger := s.loggerWith(ctx, "TickScheduled", "schedule_id", entry.ID, "minute", minuteKey)

	cmd, found, err := s.commands.Peek(ctx)
	if err != nil {
		return false, storageError("read command", err)
	}
	if found && cmd.Pending() {
		s.lastFired = minuteKey
		logger.InfoContext(ctx, "scheduled ring skipped, command already pending", "command_id", cmd.ID, "source", cmd.Source)
		return false, nil
	}

	issuedAt := s.now()
	cmd, err = s.commands.Issue(ctx, SourceScheduled, issuedAt, s.idGenerator())
	if err != nil {
		return false, storageError("issue command", err)
	}
	s.lastFired = minuteKey

	if err := s.siren.SetOn(ctx, true, issuedAt); err != nil {
		logger.ErrorContext(ctx, "failed to record siren state", "error", err)
	}
	s.publish(ctx, logger, BellEvent{
		Name:          EventScheduledRing,
		Source:        SourceScheduled,
		CommandID:     cmd.ID,
		ScheduleEvent: entry.Event,
		At:            issuedAt,
	})

	if s.localRinger != nil {
		ringCtx, cancel := context.WithTimeout(ctx, s.ringTimeout)
		if ringErr := s.localRinger.Ring(ringCtx, defaultRingSeconds*time.Second, SourceScheduled); ringErr != nil {
			logger.ErrorContext(ctx, "failed to ring local siren", "error", ringErr)
		}
		cancel()
	}

	logger.InfoContext(ctx, "scheduled ring issued", "command_id", cmd.ID, "event", string(entry.Event))
	return true, nil
}

type activationRequest struct {
	Duration int    `json:"duration" validate:"min=1,max=60"`
	Source   string `json:"source" validate:"max=20"`
}

// Activate issues a manual ring, marks the siren on, and pushes the ring to the
// device when a ringer is configured. Invalid input leaves state untouched. A
// failed push returns the stored result together with a *TransportError.
func (s *BellService) Activate(ctx context.Context, input ActivationInput) (result ActivationResult, err error) {
	if s == nil {
		err = fmt.Errorf("BellService is nil")
		return
	}

	req := activationRequest{Duration: defaultRingSeconds, Source: SourceManual}
	if input.Duration != nil {
		req.Duration = *input.Duration
	}
	if input.Source != nil {
		if source := strings.TrimSpace(*input.Source); source != "" {
			req.Source = source
		}
	}

	logger := s.loggerWith(ctx, "Activate", "source", req.Source)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to activate siren", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("command_id", result.CommandID).InfoContext(ctx, "siren activated")
	}()

	if vErr := validateStruct(s.validate, req); vErr.HasErrors() {
		err = vErr
		return
	}

	issuedAt := s.now()
	cmd, issueErr := s.commands.Issue(ctx, req.Source, issuedAt, s.idGenerator())
	if issueErr != nil {
		err = storageError("issue command", issueErr)
		return
	}
	result = ActivationResult{
		CommandID: cmd.ID,
		Source:    cmd.Source,
		Duration:  time.Duration(req.Duration) * time.Second,
		IssuedAt:  issuedAt,
	}

	if setErr := s.siren.SetOn(ctx, true, issuedAt); setErr != nil {
		err = storageError("record siren state", setErr)
		return
	}

	s.publish(ctx, logger, BellEvent{
		Name:      EventRingIssued,
		Source:    result.Source,
		CommandID: result.CommandID,
		Duration:  result.Duration,
		At:        issuedAt,
	})

	if s.ringer == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, s.ringTimeout)
	defer cancel()
	if pushErr := s.ringer.Ring(pushCtx, result.Duration, result.Source); pushErr != nil {
		err = &TransportError{Err: pushErr}
		return
	}
	result.Pushed = true
	return
}

// Confirm records that the device executed the pending ring and turns the
// siren off. Confirming with nothing pending is not an error. The returned
// error only reports storage failures for logging.
func (s *BellService) Confirm(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("BellService is nil")
	}

	logger := s.loggerWith(ctx, "Confirm")

	cmd, found, peekErr := s.commands.Peek(ctx)
	if peekErr != nil {
		found = false
	}

	var errs []error
	if err := s.commands.Confirm(ctx); err != nil {
		errs = append(errs, storageError("confirm command", err))
	}
	confirmedAt := s.now()
	if err := s.siren.SetOn(ctx, false, confirmedAt); err != nil {
		errs = append(errs, storageError("record siren state", err))
	}

	if err := errors.Join(errs...); err != nil {
		logger.ErrorContext(ctx, "failed to confirm command", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if found && cmd.Pending() {
		s.publish(ctx, logger, BellEvent{
			Name:      EventRingConfirmed,
			Source:    cmd.Source,
			CommandID: cmd.ID,
			At:        confirmedAt,
		})
		logger.InfoContext(ctx, "command confirmed", "command_id", cmd.ID)
	} else {
		logger.DebugContext(ctx, "confirm received with no pending command")
	}
	return nil
}

// CheckCommand returns the pending ring, if any. Read failures degrade to "no command".
func (s *BellService) CheckCommand(ctx context.Context) (persistence.Command, bool) {
	if s == nil {
		return persistence.Command{}, false
	}
	cmd, found, err := s.commands.Peek(ctx)
	if err != nil {
		s.loggerWith(ctx, "CheckCommand").WarnContext(ctx, "failed to read command", "error", err)
		return persistence.Command{}, false
	}
	if !found || !cmd.Pending() {
		return persistence.Command{}, false
	}
	return cmd, true
}

// RequestUpdate asks the device to enter firmware update mode on its next check.
func (s *BellService) RequestUpdate(ctx context.Context) error {
	return s.setUpdateMode(ctx, "RequestUpdate", persistence.UpdateModePending, EventUpdateRequested)
}

// ConfirmUpdate returns the device to normal mode.
func (s *BellService) ConfirmUpdate(ctx context.Context) error {
	return s.setUpdateMode(ctx, "ConfirmUpdate", persistence.UpdateModeNormal, EventUpdateConfirmed)
}

// UpdateMode reports the stored update mode. A missing slot reads as normal.
func (s *BellService) UpdateMode(ctx context.Context) (persistence.UpdateMode, error) {
	if s == nil {
		return "", fmt.Errorf("BellService is nil")
	}
	cmd, found, err := s.commands.Peek(ctx)
	if err != nil {
		return "", storageError("read command", err)
	}
	if !found || cmd.UpdateMode == "" {
		return persistence.UpdateModeNormal, nil
	}
	return cmd.UpdateMode, nil
}

func (s *BellService) setUpdateMode(ctx context.Context, operation string, mode persistence.UpdateMode, event EventName) error {
	if s == nil {
		return fmt.Errorf("BellService is nil")
	}
	logger := s.loggerWith(ctx, operation, "update_mode", string(mode))
	if err := s.commands.SetUpdateMode(ctx, mode); err != nil {
		err = storageError("set update mode", err)
		logger.ErrorContext(ctx, "failed to change update mode", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.publish(ctx, logger, BellEvent{Name: event, At: s.now()})
	logger.InfoContext(ctx, "update mode changed")
	return nil
}

func (s *BellService) publish(ctx context.Context, logger *slog.Logger, event BellEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event", string(event.Name), "error", err)
	}
}

func entryTimes(entries []persistence.ScheduleEntry) []recurrence.TimeOfDay {
	times := make([]recurrence.TimeOfDay, len(entries))
	for i, entry := range entries {
		times[i] = entry.Time
	}
	return times
}
