package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	defaultDebounce  = 200 * time.Millisecond
	defaultBlurSigma = 18.0
	resultsDepth     = 4
)

var rendersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lensd",
		Subsystem: "vision",
		Name:      "renders_total",
		Help:      "Subject-focus renders by outcome (masked, unmasked, canceled, stale)",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(rendersTotal)
}

// Result is one published render.
type Result struct {
	// Gen identifies the input change that produced this render.
	Gen       uint64
	Image     image.Image
	Selection *Point
	// Masked is false when the unmodified input was republished.
	Masked bool
	// Err explains an unmasked result; nil when Masked.
	Err error
}

// Options configures a Pipeline.
type Options struct {
	Segmenter Segmenter
	Debounce  time.Duration
	BlurSigma float64
	Logger    zerolog.Logger
}

// Pipeline recomputes the subject-focus render whenever the image or the
// selection point changes. Changes within the debounce window collapse into
// one render of the latest inputs; a newer change cancels work still in
// progress, and a render whose generation is no longer current is dropped.
type Pipeline struct {
	seg      Segmenter
	debounce time.Duration
	sigma    float64
	log      zerolog.Logger

	mu      sync.Mutex
	img     image.Image
	sel     *Point
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	latest  *Result
	subs    map[chan Result]struct{}
	renders int
}

// NewPipeline returns a Pipeline. A nil Segmenter yields BackgroundSegmenter.
func NewPipeline(opts Options) *Pipeline {
	seg := opts.Segmenter
	if seg == nil {
		seg = BackgroundSegmenter{}
	}
	d := opts.Debounce
	if d <= 0 {
		d = defaultDebounce
	}
	sigma := opts.BlurSigma
	if sigma <= 0 {
		sigma = defaultBlurSigma
	}
	return &Pipeline{
		seg:      seg,
		debounce: d,
		sigma:    sigma,
		log:      opts.Logger.With().Str("component", "vision").Logger(),
		subs:     make(map[chan Result]struct{}),
	}
}

// SetImage replaces the input image and schedules a render.
func (p *Pipeline) SetImage(img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.img = img
	p.scheduleLocked()
}

// SetSelection replaces the selection point (nil clears it) and schedules a
// render.
func (p *Pipeline) SetSelection(pt *Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel = copyPoint(pt)
	p.scheduleLocked()
}

// RenderNow renders the current inputs immediately, superseding anything
// pending. It is used for the first display of a new photo. The result is
// also published to subscribers unless it was superseded meanwhile.
func (p *Pipeline) RenderNow(ctx context.Context) (Result, error) {
	p.mu.Lock()
	gen := p.supersedeLocked()
	img, sel := p.img, copyPoint(p.sel)
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	if img == nil {
		return Result{}, errors.New("vision: no image")
	}
	res, err := p.render(ctx, gen, img, sel)
	if err != nil {
		return Result{}, err
	}
	p.publish(res)
	return res, nil
}

// Reset cancels pending and running work and clears the inputs. Nothing is
// published until the next SetImage.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supersedeLocked()
	p.img = nil
	p.sel = nil
	p.latest = nil
}

// Latest returns the most recently published result.
func (p *Pipeline) Latest() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Result{}, false
	}
	return *p.latest, true
}

// Renders reports how many renders were started, including stale ones.
func (p *Pipeline) Renders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders
}

// Results subscribes to published renders. A slow subscriber loses the
// oldest undelivered result, never the newest. The returned func
// unsubscribes and closes the channel.
func (p *Pipeline) Results() (<-chan Result, func()) {
	ch := make(chan Result, resultsDepth)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// supersedeLocked bumps the generation and stops pending and running work.
func (p *Pipeline) supersedeLocked() uint64 {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return p.gen
}

func (p *Pipeline) scheduleLocked() {
	gen := p.supersedeLocked()
	if p.img == nil {
		return
	}
	p.timer = time.AfterFunc(p.debounce, func() { p.fire(gen) })
}

// fire runs on the timer goroutine once the debounce window closed.
func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.img == nil {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	img, sel := p.img, copyPoint(p.sel)
	p.mu.Unlock()
	defer cancel()

	res, err := p.render(ctx, gen, img, sel)
	if err != nil {
		return
	}
	p.publish(res)
}

// render computes one result. It only returns an error for cancellation;
// every other failure republishes the input unmodified.
func (p *Pipeline) render(ctx context.Context, gen uint64, img image.Image, sel *Point) (res Result, err error) {
	p.mu.Lock()
	p.renders++
	p.mu.Unlock()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = p.unmasked(gen, img, sel, fmt.Errorf("vision panic: %v", r)), nil
		}
	}()

	imap, err := p.seg.Segment(ctx, img)
	if ctx.Err() != nil {
		rendersTotal.WithLabelValues("canceled").Inc()
		return Result{}, ctx.Err()
	}
	if err != nil {
		return p.unmasked(gen, img, sel, err), nil
	}
	mask, err := imap.Mask(sel)
	if err != nil {
		return p.unmasked(gen, img, sel, err), nil
	}
	blurred := imaging.Blur(img, p.sigma)
	if ctx.Err() != nil {
		rendersTotal.WithLabelValues("canceled").Inc()
		return Result{}, ctx.Err()
	}
	out := composite(img, blurred, mask)
	rendersTotal.WithLabelValues("masked").Inc()
	p.log.Debug().Str("event", "render_done").Uint64("gen", gen).Int("instances", imap.Count).Dur("dur", time.Since(start)).Send()
	return Result{Gen: gen, Image: out, Selection: sel, Masked: true}, nil
}

func (p *Pipeline) unmasked(gen uint64, img image.Image, sel *Point, err error) Result {
	rendersTotal.WithLabelValues("unmasked").Inc()
	p.log.Debug().Str("event", "render_unmasked").Uint64("gen", gen).Err(err).Send()
	return Result{Gen: gen, Image: img, Selection: sel, Err: err}
}

// publish delivers res unless a newer generation exists.
func (p *Pipeline) publish(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Gen != p.gen {
		rendersTotal.WithLabelValues("stale").Inc()
		return
	}
	p.latest = &res
	for ch := range p.subs {
		select {
		case ch <- res:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- res:
		default:
		}
	}
}

// composite draws sharp over blurred using mask as the blend weight. The
// mask is scaled to the image size when the segmenter worked at a lower
// resolution.
func composite(sharp image.Image, blurred *image.NRGBA, mask *image.Alpha) *image.NRGBA {
	out := blurred
	b := out.Bounds()
	var m image.Image = mask
	if mask.Bounds().Dx() != b.Dx() || mask.Bounds().Dy() != b.Dy() {
		m = imaging.Resize(mask, b.Dx(), b.Dy(), imaging.Linear)
	}
	draw.DrawMask(out, b, sharp, sharp.Bounds().Min, m, image.Point{}, draw.Over)
	return out
}

func copyPoint(pt *Point) *Point {
	if pt == nil {
		return nil
	}
	c := *pt
	return &c
}
