// Package session owns the state of one rendering session: the loaded sketch,
// the current options, the latest render and the submission lifecycle. All
// access goes through Controller, which allows a single submission at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/jobs"
	"github.com/fpang/sketch-render/internal/metrics"
	"github.com/fpang/sketch-render/internal/render"
)

// Renderer is the remote image capability. Each call settles exactly once.
type Renderer interface {
	Generate(ctx context.Context, req render.GenerationRequest) (*render.Image, error)
	Edit(ctx context.Context, req render.EditRequest) (*render.Image, error)
}

// Authorizer gates paid render tiers behind a selected key.
type Authorizer interface {
	HasSelectedKey(ctx context.Context) bool
	SelectKey(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithTransitionHook registers fn to observe every phase change. fn runs
// outside the controller lock and may call Snapshot.
func WithTransitionHook(fn func(Transition)) Option {
	return func(c *Controller) {
		c.hook = fn
	}
}

// WithOptions sets the initial render options.
func WithOptions(opts render.Options) Option {
	return func(c *Controller) {
		c.opts = opts
	}
}

// WithAuthorizeEdits controls whether edits pass the key gate. It is on by
// default.
func WithAuthorizeEdits(on bool) Option {
	return func(c *Controller) {
		c.authorizeEdits = on
	}
}

// Controller serializes submissions against one session.
type Controller struct {
	renderer       Renderer
	auth           Authorizer
	hook           func(Transition)
	authorizeEdits bool

	mu         sync.Mutex
	opts       render.Options
	source     *render.Image
	result     *render.Image
	// resultOpts and prompt describe the generation behind result.
	resultOpts render.Options
	phase      Phase
	lastErr    string
	prompt     string
	op         Operation
	submission string
	edits      int
	updatedAt  time.Time
	// epoch changes whenever a new sketch is loaded; a call dispatched under
	// an older epoch does not store its result.
	epoch uint64

	wg sync.WaitGroup
}

// New creates a controller in the Idle phase with default options.
func New(renderer Renderer, auth Authorizer, opts ...Option) *Controller {
	c := &Controller{
		renderer:       renderer,
		auth:           auth,
		authorizeEdits: true,
		opts:           render.DefaultOptions(),
		updatedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetOption updates one option. It is allowed in any phase; a request that
// has already been built keeps the options it was built with.
func (c *Controller) SetOption(key render.OptionKey, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.opts.With(key, value)
	if err != nil {
		return err
	}
	c.opts = next
	c.updatedAt = time.Now()
	log.Debug().Str("key", string(key)).Str("value", value).Msg("Option updated")
	return nil
}

// Options returns the current options.
func (c *Controller) Options() render.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// LoadImage replaces the source sketch and clears the previous render and
// error. The bytes are copied.
func (c *Controller) LoadImage(data []byte, mimeType string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	img := (&render.Image{Data: data, MIMEType: mimeType}).Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceSource(img)
	return nil
}

// replaceSource installs img and drops everything derived from the previous
// sketch. Must be called with c.mu held.
func (c *Controller) replaceSource(img *render.Image) {
	c.source = img
	c.result = nil
	c.resultOpts = render.Options{}
	c.lastErr = ""
	c.prompt = ""
	c.edits = 0
	c.epoch++
	c.updatedAt = time.Now()

	log.Info().
		Int("bytes", len(img.Data)).
		Str("mime", img.MIMEType).
		Bool("busy", c.phase.Busy()).
		Msg("Sketch loaded")
}

// Snapshot returns the read model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Phase:        c.phase,
		Options:      c.opts,
		HasSource:    !c.source.IsZero(),
		HasResult:    !c.result.IsZero(),
		LastError:    c.lastErr,
		Prompt:       c.prompt,
		Operation:    c.op,
		SubmissionID: c.submission,
		Edits:        c.edits,
		UpdatedAt:    c.updatedAt,
		Source:       c.source,
		Result:       c.result,
	}
	if !c.result.IsZero() {
		opts := c.resultOpts
		snap.ResultOptions = &opts
	}
	return snap
}

// SubmitGeneration renders the loaded sketch with the current options and
// blocks until the remote call settles. Busy and InvalidInput are returned
// before any remote call; a declined key prompt returns
// ErrAuthorizationDeclined. A remote failure is stored as the session error
// and nil is returned.
func (c *Controller) SubmitGeneration(ctx context.Context) error {
	s, tr, err := c.beginGeneration()
	if err != nil {
		return err
	}
	c.emit(tr)
	return c.run(ctx, s)
}

// SubmitSketch loads img, replaces the options with opts and renders it, as
// one step. When the session is busy or the request cannot be built, the
// session is left exactly as it was.
func (c *Controller) SubmitSketch(ctx context.Context, img *render.Image, opts render.Options) error {
	s, tr, err := c.beginSketch(img, opts)
	if err != nil {
		return err
	}
	c.emit(tr)
	return c.run(ctx, s)
}

// SubmitEdit applies command to the current render and blocks until the
// remote call settles. Errors are reported as for SubmitGeneration.
func (c *Controller) SubmitEdit(ctx context.Context, command string) error {
	s, tr, err := c.beginEdit(command)
	if err != nil {
		return err
	}
	c.emit(tr)
	return c.run(ctx, s)
}

// StartGeneration performs the same checks as SubmitGeneration and then
// runs authorization and the remote call in the background. The call is not
// canceled when ctx is.
func (c *Controller) StartGeneration(ctx context.Context) error {
	s, tr, err := c.beginGeneration()
	if err != nil {
		return err
	}
	c.emit(tr)
	c.background(ctx, s)
	return nil
}

// StartEdit is the background form of SubmitEdit.
func (c *Controller) StartEdit(ctx context.Context, command string) error {
	s, tr, err := c.beginEdit(command)
	if err != nil {
		return err
	}
	c.emit(tr)
	c.background(ctx, s)
	return nil
}

// Wait blocks until background submissions have settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) background(ctx context.Context, s *submission) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.run(ctx, s); err != nil {
			log.Info().Err(err).Msg("Background submission ended without dispatch")
		}
	}()
}

// submission is a request that passed the synchronous checks.
type submission struct {
	id        string
	op        Operation
	epoch     uint64
	needsAuth bool
	imageSize render.ImageSize
	// prompt and opts are set for generations and stored with the result.
	prompt    string
	opts      render.Options
	call      func(ctx context.Context) (*render.Image, error)
}

func (c *Controller) beginGeneration() (*submission, Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.Busy() {
		return nil, Transition{}, ErrBusy
	}
	req, err := render.BuildGenerationRequest(c.source, c.opts)
	if err != nil {
		return nil, Transition{}, err
	}
	s := c.generation(req)
	return s, c.claim(s), nil
}

func (c *Controller) beginSketch(img *render.Image, opts render.Options) (*submission, Transition, error) {
	if img.IsZero() {
		return nil, Transition{}, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	src := img.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.Busy() {
		return nil, Transition{}, ErrBusy
	}
	req, err := render.BuildGenerationRequest(src, opts)
	if err != nil {
		return nil, Transition{}, err
	}
	c.replaceSource(src)
	c.opts = opts
	s := c.generation(req)
	return s, c.claim(s), nil
}

// generation wraps req as a submission under the current epoch. Must be
// called with c.mu held.
func (c *Controller) generation(req render.GenerationRequest) *submission {
	return &submission{
		id:        jobs.GenerateID("gen-"),
		op:        OpGenerate,
		epoch:     c.epoch,
		needsAuth: req.ImageSize.RequiresCredential(),
		imageSize: req.ImageSize,
		prompt:    req.Prompt,
		opts:      c.opts,
		call: func(ctx context.Context) (*render.Image, error) {
			return c.renderer.Generate(ctx, req)
		},
	}
}

func (c *Controller) beginEdit(command string) (*submission, Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.Busy() {
		return nil, Transition{}, ErrBusy
	}
	req, err := render.BuildEditRequest(c.result, command)
	if err != nil {
		return nil, Transition{}, err
	}

	s := &submission{
		id:        jobs.GenerateID("edit-"),
		op:        OpEdit,
		epoch:     c.epoch,
		needsAuth: c.authorizeEdits,
		call: func(ctx context.Context) (*render.Image, error) {
			return c.renderer.Edit(ctx, req)
		},
	}
	return s, c.claim(s), nil
}

// claim moves the session out of Idle for s. Must be called with c.mu held;
// the returned transition is emitted by the caller after unlocking.
func (c *Controller) claim(s *submission) Transition {
	c.op = s.op
	c.submission = s.id

	if s.needsAuth {
		return c.setPhase(AwaitingAuthorization)
	}
	c.lastErr = ""
	return c.setPhase(InFlight)
}

func (c *Controller) run(ctx context.Context, s *submission) error {
	logger := log.With().Str("submission", s.id).Str("operation", string(s.op)).Logger()

	if s.needsAuth {
		if err := c.authorize(ctx); err != nil {
			c.mu.Lock()
			tr := c.setPhase(Idle)
			c.mu.Unlock()
			c.emit(tr)
			logger.Info().Err(err).Msg("Submission abandoned at key prompt")
			return fmt.Errorf("%w: %v", ErrAuthorizationDeclined, err)
		}
		c.mu.Lock()
		c.lastErr = ""
		tr := c.setPhase(InFlight)
		c.mu.Unlock()
		c.emit(tr)
	}

	logger.Info().Str("image_size", string(s.imageSize)).Msg("Dispatching remote call")
	start := time.Now()
	img, callErr := s.call(ctx)
	elapsed := time.Since(start)

	if callErr == nil && img.IsZero() {
		callErr = errors.New("remote call returned no image")
	}

	c.mu.Lock()
	stale := s.epoch != c.epoch
	var settled, idle Transition
	if callErr != nil {
		rerr := NormalizeRemoteError(s.op, callErr)
		if !stale {
			c.lastErr = rerr.Message
		}
		settled = c.setPhase(Failed)
	} else {
		if !stale {
			c.result = img
			if s.op == OpEdit {
				c.edits++
			} else {
				c.prompt = s.prompt
				c.resultOpts = s.opts
				c.edits = 0
			}
		}
		settled = c.setPhase(Succeeded)
	}
	idle = c.setPhase(Idle)
	c.mu.Unlock()

	c.emit(settled, idle)
	recordCall(s, callErr, elapsed)

	switch {
	case callErr != nil:
		logger.Warn().Err(callErr).Dur("duration", elapsed).Bool("stale", stale).Msg("Remote call failed")
	case stale:
		logger.Info().Dur("duration", elapsed).Msg("Discarding result for a replaced sketch")
	default:
		logger.Info().Int("bytes", len(img.Data)).Dur("duration", elapsed).Msg("Remote call succeeded")
	}
	return nil
}

func (c *Controller) authorize(ctx context.Context) error {
	if c.auth == nil || c.auth.HasSelectedKey(ctx) {
		return nil
	}
	return c.auth.SelectKey(ctx)
}

// setPhase records the transition. Must be called with c.mu held.
func (c *Controller) setPhase(to Phase) Transition {
	tr := Transition{
		From:         c.phase,
		To:           to,
		Operation:    c.op,
		SubmissionID: c.submission,
		At:           time.Now(),
	}
	c.phase = to
	c.updatedAt = tr.At
	return tr
}

func (c *Controller) emit(trs ...Transition) {
	for _, tr := range trs {
		log.Debug().
			Str("from", tr.From.String()).
			Str("to", tr.To.String()).
			Str("submission", tr.SubmissionID).
			Msg("Session transition")
		if c.hook != nil {
			c.hook(tr)
		}
	}
}

func recordCall(s *submission, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	rec := metrics.New(metrics.Namespace).
		Dimension("Operation", string(s.op)).
		Dimension("Outcome", outcome).
		Metric("RemoteCallMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("RemoteCalls").
		Property("submissionId", s.id)
	if s.imageSize != "" {
		rec.Property("imageSize", string(s.imageSize))
	}
	rec.Flush()
}
