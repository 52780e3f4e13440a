package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("capture source closed")

var framesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lensd",
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Capture attempts by result (delivered, dropped, error)",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(framesTotal)
}

// Options configures a Source.
type Options struct {
	Driver Driver
	Logger zerolog.Logger
	// QueueDepth bounds pending device operations; 0 means 16.
	QueueDepth int
}

type op func(ctx context.Context) error

type request struct {
	fn   op
	name string
	res  chan error
}

// Source serializes device operations on one worker goroutine.
type Source struct {
	drv Driver
	log zerolog.Logger

	ops    chan request
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	// Owned by the worker goroutine.
	configured bool
	running    bool
	devices    []Device
	devIdx     int
	seq        uint64
}

// NewSource starts the worker. Call Close to stop it.
func NewSource(opts Options) *Source {
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{
		drv:    opts.Driver,
		log:    opts.Logger.With().Str("component", "capture").Logger(),
		ops:    make(chan request, depth),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[*Subscription]struct{}),
	}
	go s.loop()
	return s
}

func (s *Source) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case r := <-s.ops:
			err := s.run(r)
			if r.res != nil {
				r.res <- err
			}
		}
	}
}

func (s *Source) run(r request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("capture %s panic: %v", r.name, p)
		}
		if err != nil {
			s.log.Error().Str("event", r.name+"_error").Err(err).Send()
		}
	}()
	return r.fn(s.ctx)
}

// enqueue submits fn to the worker. With wait set it blocks until fn ran or
// ctx is done.
func (s *Source) enqueue(ctx context.Context, name string, fn op, wait bool) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	r := request{fn: fn, name: name}
	if wait {
		r.res = make(chan error, 1)
	}
	select {
	case s.ops <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
	if !wait {
		return nil
	}
	select {
	case err := <-r.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Start begins frame production. It is a no-op when already running. The
// first call authorizes and configures the device; a failure is logged,
// returned, and leaves the source without frames.
func (s *Source) Start(ctx context.Context) error {
	return s.enqueue(ctx, "start", func(wctx context.Context) error {
		if s.running {
			return nil
		}
		if !s.configured {
			if err := s.configure(wctx); err != nil {
				return err
			}
		}
		if err := s.drv.Start(wctx); err != nil {
			return fmt.Errorf("start device: %w", err)
		}
		s.running = true
		s.log.Info().Str("event", "start").Str("device", s.devices[s.devIdx].ID).Send()
		return nil
	}, true)
}

func (s *Source) configure(ctx context.Context) error {
	if s.drv == nil {
		return errors.New("no capture driver")
	}
	if err := s.drv.Authorize(ctx); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	devs, err := s.drv.Devices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devs) == 0 {
		return errors.New("no capture devices")
	}
	if err := s.drv.Configure(ctx, devs[0]); err != nil {
		return fmt.Errorf("configure %s: %w", devs[0].ID, err)
	}
	s.devices = devs
	s.devIdx = 0
	s.configured = true
	return nil
}

// Stop halts frame production and keeps the configuration.
func (s *Source) Stop(ctx context.Context) error {
	return s.enqueue(ctx, "stop", func(wctx context.Context) error {
		if !s.running {
			return nil
		}
		s.running = false
		if err := s.drv.Stop(wctx); err != nil {
			return fmt.Errorf("stop device: %w", err)
		}
		s.log.Info().Str("event", "stop").Send()
		return nil
	}, true)
}

// Capture asks for exactly one frame. It returns once the request is queued;
// the frame arrives on subscriptions. Nothing is produced while stopped.
func (s *Source) Capture(ctx context.Context) error {
	return s.enqueue(ctx, "capture", func(wctx context.Context) error {
		if !s.running {
			framesTotal.WithLabelValues("dropped").Inc()
			s.log.Debug().Str("event", "capture_dropped").Msg("source not running")
			return nil
		}
		dev := s.devices[s.devIdx]
		img, err := s.drv.CapturePhoto(wctx)
		if err != nil {
			framesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("capture photo: %w", err)
		}
		s.seq++
		f := Frame{
			Seq:        s.seq,
			DeviceID:   dev.ID,
			Image:      Normalize(img, dev.Rotation, dev.Mirrored()),
			CapturedAt: time.Now(),
		}
		s.deliver(f)
		framesTotal.WithLabelValues("delivered").Inc()
		return nil
	}, false)
}

// SwitchDevice cycles to the next camera and reconfigures in place.
// Subscriptions are unaffected. It is a no-op before the first Start or with
// a single device.
func (s *Source) SwitchDevice(ctx context.Context) error {
	return s.enqueue(ctx, "switch_device", func(wctx context.Context) error {
		if !s.configured || len(s.devices) < 2 {
			return nil
		}
		next := (s.devIdx + 1) % len(s.devices)
		if err := s.drv.Configure(wctx, s.devices[next]); err != nil {
			return fmt.Errorf("configure %s: %w", s.devices[next].ID, err)
		}
		s.devIdx = next
		s.log.Info().Str("event", "switch_device").Str("device", s.devices[next].ID).Send()
		return nil
	}, true)
}

// Device returns the currently configured camera.
func (s *Source) Device(ctx context.Context) (Device, error) {
	var dev Device
	err := s.enqueue(ctx, "device", func(context.Context) error {
		if !s.configured {
			return errors.New("capture not configured")
		}
		dev = s.devices[s.devIdx]
		return nil
	}, true)
	return dev, err
}

// Frames subscribes to frames produced from now on.
func (s *Source) Frames() *Subscription {
	sub := newSubscription(s)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return sub
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *Source) deliver(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.push(f)
	}
}

func (s *Source) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Close stops the worker, stops the device and ends all subscriptions.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var stopErr error
	res := make(chan error, 1)
	select {
	case s.ops <- request{name: "close", res: res, fn: func(wctx context.Context) error {
		if s.running {
			s.running = false
			return s.drv.Stop(wctx)
		}
		return nil
	}}:
		stopErr = <-res
	default:
	}
	s.cancel()
	<-s.done

	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[*Subscription]struct{})
	s.mu.Unlock()
	for sub := range subs {
		sub.Close()
	}
	return stopErr
}
