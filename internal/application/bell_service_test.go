package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/persistence/memory"
	"github.com/example/school-bell/internal/recurrence"
	"github.com/example/school-bell/internal/testfixtures"
)

type ringerStub struct {
	mu    sync.Mutex
	calls []ringCall
	err   error
	block bool
}

type ringCall struct {
	duration time.Duration
	source   string
}

func (r *ringerStub) Ring(ctx context.Context, duration time.Duration, source string) error {
	r.mu.Lock()
	r.calls = append(r.calls, ringCall{duration: duration, source: source})
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.err
}

func (r *ringerStub) Calls() []ringCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ringCall(nil), r.calls...)
}

type publisherStub struct {
	mu     sync.Mutex
	events []BellEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, event BellEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *publisherStub) Names() []EventName {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]EventName, 0, len(p.events))
	for _, event := range p.events {
		names = append(names, event.Name)
	}
	return names
}

// faultyStore injects read and write failures in front of the memory backend.
type faultyStore struct {
	*memory.Storage
	activeErr error
	peekErr   error
	issueErr  error
	sirenErr  error
	setOnErr  error
}

func (f *faultyStore) ActiveFor(ctx context.Context, day time.Weekday, date time.Time) ([]persistence.ScheduleEntry, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.Storage.ActiveFor(ctx, day, date)
}

func (f *faultyStore) Peek(ctx context.Context) (persistence.Command, bool, error) {
	if f.peekErr != nil {
		return persistence.Command{}, false, f.peekErr
	}
	return f.Storage.Peek(ctx)
}

func (f *faultyStore) Issue(ctx context.Context, source string, issuedAt time.Time, id string) (persistence.Command, error) {
	if f.issueErr != nil {
		return persistence.Command{}, f.issueErr
	}
	return f.Storage.Issue(ctx, source, issuedAt, id)
}

func (f *faultyStore) GetSiren(ctx context.Context) (persistence.SirenStatus, error) {
	if f.sirenErr != nil {
		return persistence.SirenStatus{}, f.sirenErr
	}
	return f.Storage.GetSiren(ctx)
}

func (f *faultyStore) SetOn(ctx context.Context, on bool, at time.Time) error {
	if f.setOnErr != nil {
		return f.setOnErr
	}
	return f.Storage.SetOn(ctx, on, at)
}

type bellHarness struct {
	store  *faultyStore
	clock  *testfixtures.Clock
	ids    *testfixtures.IDGenerator
	ringer *ringerStub
	events *publisherStub
	svc    *BellService
}

func newBellHarness(t *testing.T, configure ...func(*BellServiceConfig)) *bellHarness {
	t.Helper()

	h := &bellHarness{
		store:  &faultyStore{Storage: memory.Open()},
		clock:  testfixtures.NewClock(time.Time{}),
		ids:    testfixtures.NewIDGenerator("cmd"),
		ringer: &ringerStub{},
		events: &publisherStub{},
	}
	cfg := BellServiceConfig{
		Schedules:   h.store,
		Commands:    h.store,
		Siren:       h.store,
		Engine:      recurrence.NewEngine(testfixtures.Location),
		DayCodes:    recurrence.DefaultDayCodes,
		Publisher:   h.events,
		IDGenerator: h.ids.NextFunc(),
		Now:         h.clock.NowFunc(),
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	h.svc = NewBellService(cfg)
	return h
}

func withRinger(r Ringer) func(*BellServiceConfig) {
	return func(cfg *BellServiceConfig) {
		cfg.Ringer = r
		cfg.RingTimeout = 50 * time.Millisecond
	}
}

func (h *bellHarness) addSchedule(t *testing.T, opts ...testfixtures.ScheduleOption) persistence.ScheduleEntry {
	t.Helper()
	entry := testfixtures.NewScheduleFixture(opts...).Persistence()
	if err := h.store.CreateSchedule(context.Background(), entry); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	return entry
}

func (h *bellHarness) resolve(t *testing.T) Directive {
	t.Helper()
	directive, err := h.svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return directive
}

func TestBellService_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("activates anywhere within a scheduled minute", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(7, 30))
		h.addSchedule(t, testfixtures.WithTime(12, 0))
		h.addSchedule(t, testfixtures.WithTime(17, 45))

		for _, at := range [][3]int{{7, 30, 0}, {7, 30, 59}, {12, 0, 1}, {17, 45, 30}} {
			h.clock.SetClock(at[0], at[1], at[2])
			directive := h.resolve(t)
			if !directive.ShouldActivate || !directive.IsScheduled {
				t.Fatalf("expected scheduled activation at %02d:%02d:%02d, got %#v", at[0], at[1], at[2], directive)
			}
			if directive.CommandID != "" {
				t.Fatalf("expected no command id without a pending ring, got %q", directive.CommandID)
			}
		}
	})

	t.Run("stays idle outside scheduled minutes", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(7, 30))

		for _, at := range [][3]int{{7, 29, 59}, {7, 31, 0}, {0, 0, 0}, {23, 59, 59}} {
			h.clock.SetClock(at[0], at[1], at[2])
			directive := h.resolve(t)
			if directive.ShouldActivate || directive.IsScheduled {
				t.Fatalf("expected no activation at %02d:%02d:%02d, got %#v", at[0], at[1], at[2], directive)
			}
		}
	})

	t.Run("recess on tuesday inside its window", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t,
			testfixtures.WithEvent(persistence.EventRecess),
			testfixtures.WithTime(9, 50),
			testfixtures.WithDays(time.Tuesday),
			testfixtures.WithWindow(testfixtures.Date(2024, time.January, 1), testfixtures.Date(2024, time.December, 31)),
		)
		h.clock.Set(testfixtures.At(2024, time.March, 5, 9, 50, 12))

		directive := h.resolve(t)
		if !directive.ShouldActivate || !directive.IsScheduled {
			t.Fatalf("expected scheduled activation, got %#v", directive)
		}
		if directive.CurrentDay != "TER" || directive.CurrentTime.String() != "09:50" {
			t.Fatalf("unexpected clock fields %s %s", directive.CurrentDay, directive.CurrentTime)
		}

		h.clock.Set(testfixtures.At(2024, time.March, 6, 9, 50, 0))
		if directive := h.resolve(t); directive.ShouldActivate {
			t.Fatalf("expected no activation on wednesday, got %#v", directive)
		}

		h.clock.Set(testfixtures.At(2025, time.March, 4, 9, 50, 0))
		if directive := h.resolve(t); directive.ShouldActivate {
			t.Fatalf("expected no activation outside the window, got %#v", directive)
		}
	})

	t.Run("next alarm is the earliest later entry today", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(12, 0), testfixtures.WithDays(time.Monday))
		h.addSchedule(t, testfixtures.WithTime(7, 30), testfixtures.WithDays(time.Monday))
		h.addSchedule(t, testfixtures.WithTime(6, 0), testfixtures.WithDays(time.Tuesday))

		tests := []struct {
			hour, minute, second int
			want                 string
		}{
			{hour: 8, minute: 0, want: "12:00"},
			{hour: 6, minute: 0, want: "07:30"},
			{hour: 7, minute: 30, second: 45, want: "12:00"},
			{hour: 12, minute: 0, want: ""},
			{hour: 23, minute: 0, want: ""},
		}
		for _, tt := range tests {
			h.clock.Set(testfixtures.At(2024, time.March, 4, tt.hour, tt.minute, tt.second))
			directive := h.resolve(t)
			got := ""
			if directive.NextAlarm != nil {
				got = directive.NextAlarm.String()
			}
			if got != tt.want {
				t.Fatalf("at %02d:%02d next alarm = %q, want %q", tt.hour, tt.minute, got, tt.want)
			}
		}
	})

	t.Run("manual command wins attribution", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))

		if _, err := h.store.Issue(context.Background(), "web", h.clock.Now(), "cmd-web"); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		directive := h.resolve(t)
		if !directive.ShouldActivate || directive.IsScheduled {
			t.Fatalf("expected manual attribution during a scheduled minute, got %#v", directive)
		}
		if directive.CommandID != "cmd-web" {
			t.Fatalf("expected pending command id, got %q", directive.CommandID)
		}

		h.clock.SetClock(10, 30, 0)
		directive = h.resolve(t)
		if !directive.ShouldActivate || directive.IsScheduled {
			t.Fatalf("expected manual activation outside schedules, got %#v", directive)
		}
	})

	t.Run("ring stored by the ticker counts as pending", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))

		issued, err := h.svc.TickScheduled(context.Background())
		if err != nil || !issued {
			t.Fatalf("TickScheduled = %v, %v; want issued", issued, err)
		}

		directive := h.resolve(t)
		if !directive.ShouldActivate || directive.IsScheduled {
			t.Fatalf("expected pending ring to clear is_scheduled in its minute, got %#v", directive)
		}
		if directive.CommandID != "cmd-1" {
			t.Fatalf("expected pending command id cmd-1, got %q", directive.CommandID)
		}

		h.clock.SetClock(9, 52, 0)
		directive = h.resolve(t)
		if !directive.ShouldActivate || directive.IsScheduled {
			t.Fatalf("expected unconfirmed ring to activate unscheduled, got %#v", directive)
		}
	})

	t.Run("reports siren state without writing", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		if err := h.store.SetOn(context.Background(), true, h.clock.Now()); err != nil {
			t.Fatalf("SetOn failed: %v", err)
		}

		for i := 0; i < 3; i++ {
			if directive := h.resolve(t); !directive.SirenOn {
				t.Fatalf("expected siren on, got %#v", directive)
			}
		}
		cmd, _, err := h.store.Peek(context.Background())
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if cmd.Pending() {
			t.Fatalf("resolving must not issue commands, got %#v", cmd)
		}
		if len(h.events.Names()) != 0 {
			t.Fatalf("resolving must not publish events, got %v", h.events.Names())
		}
	})

	t.Run("degrades to safe defaults when reads fail", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))
		h.store.activeErr = errors.New("schedules unavailable")
		h.store.peekErr = errors.New("queue unavailable")
		h.store.sirenErr = errors.New("siren unavailable")

		directive, err := h.svc.Resolve(context.Background())
		if err == nil {
			t.Fatal("expected joined read error")
		}
		for _, cause := range []error{h.store.activeErr, h.store.peekErr, h.store.sirenErr} {
			if !errors.Is(err, cause) {
				t.Fatalf("expected %v in %v", cause, err)
			}
		}
		if directive.ShouldActivate || directive.IsScheduled || directive.SirenOn || directive.NextAlarm != nil {
			t.Fatalf("expected safe defaults, got %#v", directive)
		}
		if directive.CurrentDay != "TER" || directive.CurrentTime.String() != "09:50" {
			t.Fatalf("expected clock fields even when degraded, got %#v", directive)
		}
	})

	t.Run("uses the configured weekday codes", func(t *testing.T) {
		t.Parallel()

		codes, err := recurrence.NewDayCodes([]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"})
		if err != nil {
			t.Fatalf("NewDayCodes failed: %v", err)
		}
		h := newBellHarness(t, func(cfg *BellServiceConfig) { cfg.DayCodes = codes })

		if directive := h.resolve(t); directive.CurrentDay != "TU" {
			t.Fatalf("expected TU, got %q", directive.CurrentDay)
		}
	})
}

func TestBellService_Confirm(t *testing.T) {
	t.Parallel()

	t.Run("clears the pending ring and turns the siren off", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		ctx := context.Background()
		if _, err := h.svc.Activate(ctx, ActivationInput{}); err != nil {
			t.Fatalf("Activate failed: %v", err)
		}

		if err := h.svc.Confirm(ctx); err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}

		directive := h.resolve(t)
		if directive.ShouldActivate || directive.SirenOn || directive.CommandID != "" {
			t.Fatalf("expected idle directive after confirm, got %#v", directive)
		}
		names := h.events.Names()
		if len(names) != 2 || names[0] != EventRingIssued || names[1] != EventRingConfirmed {
			t.Fatalf("unexpected events %v", names)
		}
	})

	t.Run("is idempotent when nothing is pending", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			if err := h.svc.Confirm(ctx); err != nil {
				t.Fatalf("Confirm #%d failed: %v", i+1, err)
			}
			cmd, _, err := h.store.Peek(ctx)
			if err != nil {
				t.Fatalf("Peek failed: %v", err)
			}
			if cmd.Value != persistence.CommandIdle {
				t.Fatalf("expected idle queue, got %#v", cmd)
			}
		}

		directive := h.resolve(t)
		if !directive.ShouldActivate || !directive.IsScheduled {
			t.Fatalf("confirm must not affect schedule attribution, got %#v", directive)
		}
		if len(h.events.Names()) != 0 {
			t.Fatalf("expected no events for idle confirms, got %v", h.events.Names())
		}
	})

	t.Run("reports storage failures", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.store.setOnErr = errors.New("disk full")

		err := h.svc.Confirm(context.Background())
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

func TestBellService_Activate(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults and records state", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t, withRinger(&ringerStub{}))
		result, err := h.svc.Activate(context.Background(), ActivationInput{})
		if err != nil {
			t.Fatalf("Activate failed: %v", err)
		}
		if result.CommandID != "cmd-1" || result.Source != SourceManual || result.Duration != 3*time.Second {
			t.Fatalf("unexpected result %#v", result)
		}
		if !result.IssuedAt.Equal(h.clock.Now()) || !result.Pushed {
			t.Fatalf("unexpected result %#v", result)
		}

		cmd, _, err := h.store.Peek(context.Background())
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if !cmd.Pending() || cmd.Source != SourceManual || cmd.ID != "cmd-1" {
			t.Fatalf("unexpected command %#v", cmd)
		}
		status, err := h.store.GetSiren(context.Background())
		if err != nil || !status.IsOn {
			t.Fatalf("expected siren on, got %#v (%v)", status, err)
		}
	})

	t.Run("pushes the requested duration and source", func(t *testing.T) {
		t.Parallel()

		ringer := &ringerStub{}
		h := newBellHarness(t, withRinger(ringer))
		duration, source := 10, "  web  "

		result, err := h.svc.Activate(context.Background(), ActivationInput{Duration: &duration, Source: &source})
		if err != nil {
			t.Fatalf("Activate failed: %v", err)
		}
		calls := ringer.Calls()
		if len(calls) != 1 || calls[0].duration != 10*time.Second || calls[0].source != "web" {
			t.Fatalf("unexpected ringer calls %#v", calls)
		}
		if result.Source != "web" {
			t.Fatalf("expected trimmed source, got %q", result.Source)
		}
	})

	t.Run("rejects invalid input without state change", func(t *testing.T) {
		t.Parallel()

		zero, tooLong, longSource := 0, 61, "a-source-name-that-is-too-long"
		tests := []struct {
			name  string
			input ActivationInput
			field string
		}{
			{name: "zero duration", input: ActivationInput{Duration: &zero}, field: "duration"},
			{name: "long duration", input: ActivationInput{Duration: &tooLong}, field: "duration"},
			{name: "long source", input: ActivationInput{Source: &longSource}, field: "source"},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				ringer := &ringerStub{}
				h := newBellHarness(t, withRinger(ringer))
				_, err := h.svc.Activate(context.Background(), tt.input)

				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tt.field]; !ok {
					t.Fatalf("expected %s error, got %#v", tt.field, vErr.FieldErrors)
				}

				cmd, _, _ := h.store.Peek(context.Background())
				status, _ := h.store.GetSiren(context.Background())
				if cmd.Pending() || status.IsOn || len(ringer.Calls()) != 0 || len(h.events.Names()) != 0 {
					t.Fatalf("expected no side effects, got cmd=%#v siren=%#v", cmd, status)
				}
			})
		}
	})

	t.Run("keeps state when the push fails", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		ringer := &ringerStub{err: cause}
		h := newBellHarness(t, withRinger(ringer))

		result, err := h.svc.Activate(context.Background(), ActivationInput{})
		var tErr *TransportError
		if !errors.As(err, &tErr) || !errors.Is(err, cause) {
			t.Fatalf("expected transport error wrapping cause, got %v", err)
		}
		if result.CommandID == "" || result.Pushed {
			t.Fatalf("expected stored but unpushed result, got %#v", result)
		}
		if len(ringer.Calls()) != 1 {
			t.Fatalf("expected exactly one push attempt, got %d", len(ringer.Calls()))
		}

		directive := h.resolve(t)
		if !directive.ShouldActivate || !directive.SirenOn || directive.CommandID != result.CommandID {
			t.Fatalf("expected pending ring to survive the failed push, got %#v", directive)
		}
	})

	t.Run("times out a stalled push", func(t *testing.T) {
		t.Parallel()

		ringer := &ringerStub{block: true}
		h := newBellHarness(t, withRinger(ringer))

		start := time.Now()
		_, err := h.svc.Activate(context.Background(), ActivationInput{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("push was not bounded by the timeout, took %v", elapsed)
		}
	})

	t.Run("reports storage failures before pushing", func(t *testing.T) {
		t.Parallel()

		ringer := &ringerStub{}
		h := newBellHarness(t, withRinger(ringer))
		h.store.issueErr = errors.New("database is locked")

		_, err := h.svc.Activate(context.Background(), ActivationInput{})
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
		if len(ringer.Calls()) != 0 {
			t.Fatalf("expected no push after storage failure")
		}
	})

	t.Run("concurrent activations leave one pending ring", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		const callers = 8

		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.svc.Activate(context.Background(), ActivationInput{}); err != nil {
					t.Errorf("Activate failed: %v", err)
				}
			}()
		}
		wg.Wait()

		cmd, _, err := h.store.Peek(context.Background())
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		issued := h.ids.Issued()
		if len(issued) != callers {
			t.Fatalf("expected %d ids, got %d", callers, len(issued))
		}
		known := false
		for _, id := range issued {
			if id == cmd.ID {
				known = true
			}
		}
		if !cmd.Pending() || !known {
			t.Fatalf("expected one of the issued commands to be pending, got %#v", cmd)
		}

		if err := h.svc.Confirm(context.Background()); err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if directive := h.resolve(t); directive.ShouldActivate {
			t.Fatalf("a single confirm must clear every concurrent activation, got %#v", directive)
		}
	})
}

func TestBellService_TickScheduled(t *testing.T) {
	t.Parallel()

	t.Run("drives the local siren but never the network push", func(t *testing.T) {
		t.Parallel()

		local := &ringerStub{}
		h := newBellHarness(t, withRinger(&ringerStub{}), func(cfg *BellServiceConfig) {
			cfg.LocalRinger = local
		})
		h.addSchedule(t, testfixtures.WithTime(9, 50))
		ctx := context.Background()

		issued, err := h.svc.TickScheduled(ctx)
		if err != nil || !issued {
			t.Fatalf("expected tick to issue, got issued=%v err=%v", issued, err)
		}
		calls := local.Calls()
		if len(calls) != 1 || calls[0].duration != 3*time.Second || calls[0].source != SourceScheduled {
			t.Fatalf("unexpected local ring calls %#v", calls)
		}
		if push := h.svc.ringer.(*ringerStub).Calls(); len(push) != 0 {
			t.Fatalf("scheduled ring must not push to the device, got %#v", push)
		}

		if issued, _ := h.svc.TickScheduled(ctx); issued || len(local.Calls()) != 1 {
			t.Fatalf("expected a single local ring per minute, got issued=%v calls=%d", issued, len(local.Calls()))
		}
	})

	t.Run("local siren failure keeps the stored ring", func(t *testing.T) {
		t.Parallel()

		local := &ringerStub{err: errors.New("line busy")}
		h := newBellHarness(t, func(cfg *BellServiceConfig) {
			cfg.LocalRinger = local
		})
		h.addSchedule(t, testfixtures.WithTime(9, 50))

		issued, err := h.svc.TickScheduled(context.Background())
		if err != nil || !issued {
			t.Fatalf("expected tick to issue despite relay failure, got issued=%v err=%v", issued, err)
		}
		if cmd, _, _ := h.store.Peek(context.Background()); !cmd.Pending() {
			t.Fatalf("expected pending scheduled ring, got %#v", cmd)
		}
	})

	t.Run("issues once per scheduled minute", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50), testfixtures.WithEvent(persistence.EventRecess))
		ctx := context.Background()

		issued, err := h.svc.TickScheduled(ctx)
		if err != nil || !issued {
			t.Fatalf("expected first tick to issue, got issued=%v err=%v", issued, err)
		}
		cmd, _, _ := h.store.Peek(ctx)
		if !cmd.Pending() || cmd.Source != SourceScheduled {
			t.Fatalf("unexpected command %#v", cmd)
		}

		if err := h.svc.Confirm(ctx); err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		h.clock.SetClock(9, 50, 40)
		issued, err = h.svc.TickScheduled(ctx)
		if err != nil || issued {
			t.Fatalf("expected no second ring in the same minute, got issued=%v err=%v", issued, err)
		}

		h.clock.Set(testfixtures.At(2024, time.March, 6, 9, 50, 0))
		issued, err = h.svc.TickScheduled(ctx)
		if err != nil || !issued {
			t.Fatalf("expected the next day to fire again, got issued=%v err=%v", issued, err)
		}

		h.events.mu.Lock()
		defer h.events.mu.Unlock()
		if len(h.events.events) == 0 || h.events.events[0].Name != EventScheduledRing || h.events.events[0].ScheduleEvent != persistence.EventRecess {
			t.Fatalf("unexpected events %#v", h.events.events)
		}
	})

	t.Run("skips minutes without a match", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(7, 30))

		issued, err := h.svc.TickScheduled(context.Background())
		if err != nil || issued {
			t.Fatalf("expected no ring, got issued=%v err=%v", issued, err)
		}
	})

	t.Run("does not overwrite a pending ring", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))
		ctx := context.Background()
		if _, err := h.store.Issue(ctx, "web", h.clock.Now(), "cmd-web"); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		issued, err := h.svc.TickScheduled(ctx)
		if err != nil || issued {
			t.Fatalf("expected tick to leave the pending ring, got issued=%v err=%v", issued, err)
		}
		cmd, _, _ := h.store.Peek(ctx)
		if cmd.ID != "cmd-web" || cmd.Source != "web" {
			t.Fatalf("pending ring was overwritten: %#v", cmd)
		}
	})

	t.Run("reports storage failures", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))
		h.store.issueErr = errors.New("database is locked")

		_, err := h.svc.TickScheduled(context.Background())
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}

		h.store.issueErr = nil
		issued, err := h.svc.TickScheduled(context.Background())
		if err != nil || !issued {
			t.Fatalf("expected retry on the next tick to succeed, got issued=%v err=%v", issued, err)
		}
	})

	t.Run("concurrent ticks store a single ring", func(t *testing.T) {
		t.Parallel()

		h := newBellHarness(t)
		h.addSchedule(t, testfixtures.WithTime(9, 50))

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fired int
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				issued, err := h.svc.TickScheduled(context.Background())
				if err != nil {
					t.Errorf("TickScheduled failed: %v", err)
				}
				if issued {
					mu.Lock()
					fired++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if fired != 1 {
			t.Fatalf("expected exactly one ring, got %d", fired)
		}
	})
}

func TestBellService_UpdateMode(t *testing.T) {
	t.Parallel()

	h := newBellHarness(t)
	ctx := context.Background()

	mode, err := h.svc.UpdateMode(ctx)
	if err != nil || mode != persistence.UpdateModeNormal {
		t.Fatalf("expected normal mode, got %q (%v)", mode, err)
	}

	if err := h.svc.RequestUpdate(ctx); err != nil {
		t.Fatalf("RequestUpdate failed: %v", err)
	}
	if _, err := h.svc.Activate(ctx, ActivationInput{}); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := h.svc.Confirm(ctx); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	mode, err = h.svc.UpdateMode(ctx)
	if err != nil || mode != persistence.UpdateModePending {
		t.Fatalf("expected update mode to survive ring traffic, got %q (%v)", mode, err)
	}

	if err := h.svc.ConfirmUpdate(ctx); err != nil {
		t.Fatalf("ConfirmUpdate failed: %v", err)
	}
	mode, err = h.svc.UpdateMode(ctx)
	if err != nil || mode != persistence.UpdateModeNormal {
		t.Fatalf("expected normal mode after confirm, got %q (%v)", mode, err)
	}

	names := h.events.Names()
	if names[0] != EventUpdateRequested || names[len(names)-1] != EventUpdateConfirmed {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestBellService_CheckCommand(t *testing.T) {
	t.Parallel()

	h := newBellHarness(t)
	ctx := context.Background()

	if _, ok := h.svc.CheckCommand(ctx); ok {
		t.Fatal("expected no command on a fresh queue")
	}

	if _, err := h.svc.Activate(ctx, ActivationInput{}); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	cmd, ok := h.svc.CheckCommand(ctx)
	if !ok || cmd.ID != "cmd-1" || cmd.Source != SourceManual {
		t.Fatalf("unexpected command %#v (ok=%v)", cmd, ok)
	}

	h.store.peekErr = errors.New("queue unavailable")
	if _, ok := h.svc.CheckCommand(ctx); ok {
		t.Fatal("expected read failures to degrade to no command")
	}
}
