package profiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/exporter"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/host"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/logger"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/store"
)

const (
	defaultCommandQueueSize = 100
	defaultStoreTimeout     = 500 * time.Millisecond

	// TickLabel is the parent of every call made directly by the tick's main function.
	TickLabel = "(tick)"
	// RootLabel holds TickLabel in the call-graph export.
	RootLabel = "(root)"
)

// CatalogEntry is one host object instrumented by Enable. A nil Target is skipped.
type CatalogEntry struct {
	Name   string
	Target Target
}

// MetricsEmitter receives per-tick measurements. *metrics.MetricsClient implements it.
type MetricsEmitter interface {
	EmitTimer(name string, value float64, tags map[string]string) error
	EmitGauge(name string, value float64, tags map[string]string) error
	Flush() error
}

type Config struct {
	Host       host.Host
	Store      store.SessionStore
	Logger     logger.Logger
	Catalog    []CatalogEntry
	Console    io.Writer
	Notifier   Notifier
	Exporter   exporter.Exporter
	Metrics    MetricsEmitter
	Classifier OutcomeClassifier

	Shard string
	PTR   bool

	CommandQueueSize int
	StoreTimeout     time.Duration
}

type Option func(*Config)

func newDefaultConfig() *Config {
	return &Config{
		Console:          os.Stdout,
		CommandQueueSize: defaultCommandQueueSize,
		StoreTimeout:     defaultStoreTimeout,
	}
}

func WithHost(h host.Host) Option {
	return func(cfg *Config) {
		cfg.Host = h
	}
}

// WithStore sets where the session survives between ticks. The default keeps it in memory.
func WithStore(s store.SessionStore) Option {
	return func(cfg *Config) {
		cfg.Store = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithCatalog sets the host objects instrumented by Enable.
func WithCatalog(entries ...CatalogEntry) Option {
	return func(cfg *Config) {
		cfg.Catalog = append(cfg.Catalog, entries...)
	}
}

// WithConsole sets where reports and console messages are printed.
func WithConsole(w io.Writer) Option {
	return func(cfg *Config) {
		cfg.Console = w
	}
}

func WithNotifier(n Notifier) Option {
	return func(cfg *Config) {
		cfg.Notifier = n
	}
}

func WithExporter(e exporter.Exporter) Option {
	return func(cfg *Config) {
		cfg.Exporter = e
	}
}

func WithMetrics(m MetricsEmitter) Option {
	return func(cfg *Config) {
		cfg.Metrics = m
	}
}

// WithOutcomeClassifier enables intent tracking, see OutcomeClassifier.
func WithOutcomeClassifier(c OutcomeClassifier) Option {
	return func(cfg *Config) {
		cfg.Classifier = c
	}
}

// WithShard names the shard in exported file names. ptr marks a public test realm.
func WithShard(name string, ptr bool) Option {
	return func(cfg *Config) {
		cfg.Shard = name
		cfg.PTR = ptr
	}
}

func WithCommandQueueSize(size int) Option {
	return func(cfg *Config) {
		if size > 0 {
			cfg.CommandQueueSize = size
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.StoreTimeout = d
		}
	}
}

// Profiler is the session controller. Everything except Submit and Do must be called from the
// goroutine that runs Loop.
type Profiler struct {
	host       host.Host
	store      store.SessionStore
	logger     logger.Logger
	catalog    []CatalogEntry
	console    io.Writer
	notifier   Notifier
	exporter   exporter.Exporter
	metrics    MetricsEmitter
	classifier OutcomeClassifier

	shard string
	ptr   bool

	storeTimeout time.Duration
	commands     chan *command
	cli          *Console

	enabled bool
	session *common.Session

	// per-tick scratch state
	depth  int
	parent string
}

func NewProfiler(opts ...Option) *Profiler {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Host == nil {
		cfg.Host = host.NewSimHost()
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.AddHook(logger.NewTickHook(cfg.Host.Time, nil))
		cfg.Logger = logger.NewLogrus(l)
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	if cfg.Notifier == nil {
		cfg.Notifier = &LogNotifier{Logger: cfg.Logger}
	}
	if cfg.Exporter == nil {
		cfg.Exporter = exporter.NewDirExporter(".")
	}

	p := &Profiler{
		host:         cfg.Host,
		store:        cfg.Store,
		logger:       cfg.Logger,
		catalog:      cfg.Catalog,
		console:      cfg.Console,
		notifier:     cfg.Notifier,
		exporter:     cfg.Exporter,
		metrics:      cfg.Metrics,
		classifier:   cfg.Classifier,
		shard:        cfg.Shard,
		ptr:          cfg.PTR,
		storeTimeout: cfg.StoreTimeout,
		commands:     make(chan *command, cfg.CommandQueueSize),
		parent:       TickLabel,
	}
	p.cli = &Console{p: p}
	p.loadSession()
	return p
}

// Console returns the interactive command surface bound to p.
func (p *Profiler) Console() *Console {
	return p.cli
}

// Enable turns instrumentation on and wraps every catalog object. Calling it again is harmless.
func (p *Profiler) Enable() {
	p.enabled = true
	for _, entry := range p.catalog {
		if entry.Target == nil {
			p.logger.Info("[Enable] skipping prototype hook %s, object appears to be missing", entry.Name)
			continue
		}
		p.instrumentObject(entry.Target, entry.Name)
	}
}

func (p *Profiler) Enabled() bool {
	return p.enabled
}

// Loop runs one tick of the host's main function and returns its result. Wrap the body of the
// host loop with it.
func (p *Profiler) Loop(main func() error) error {
	p.beginTick()
	if p.IsProfiling() {
		err := main()
		p.endTick()
		return err
	}
	return main()
}

func (p *Profiler) beginTick() {
	if p.session == nil {
		p.loadSession()
	}
	p.drainCommands()
	if !p.enabled {
		return
	}
	p.depth = 0
	p.parent = TickLabel
	if ci, ok := p.host.(host.ConsoleInstaller); ok {
		ci.InstallConsole(p.cli)
	}
	if r, ok := p.host.(host.CPUResetter); ok {
		r.ResetCPU()
	}
}

func (p *Profiler) endTick() {
	s := p.session
	if s == nil {
		return
	}
	if p.host.Time() >= s.EnabledTick {
		cpu := p.host.CPUUsed()
		s.TotalTime += cpu
		p.emitTickMetrics(s, cpu)
		p.report()
	}
	p.saveSession()
}

// IsProfiling reports whether wrapped functions currently record.
func (p *Profiler) IsProfiling() bool {
	if !p.enabled || p.session == nil {
		return false
	}
	return p.session.Indefinite() || p.host.Time() <= p.session.DisableTick
}

// Now returns the host's current tick.
func (p *Profiler) Now() int64 {
	return p.host.Time()
}

// Session returns the live session, or nil.
func (p *Profiler) Session() *common.Session {
	return p.session
}

// StartSession replaces any session with a new one that starts on the next tick. A duration
// of zero or less starts an indefinite session.
func (p *Profiler) StartSession(st common.SessionType, duration int64, filter string) error {
	if _, ok := common.FromString(st.ToString()); !ok {
		return fmt.Errorf("%q: %w", st, ErrUnknownSessionType)
	}
	p.ResetSession()

	now := p.host.Time()
	var disableTick int64
	if duration > 0 {
		disableTick = now + duration
	}
	p.session = common.NewSession(st, now+1, disableTick, filter)
	p.saveSession()

	if duration > 0 {
		p.printf("Profiling type %s started at %d for %d ticks\n", st, now+1, duration)
	} else {
		p.printf("Profiling type %s started at %d for unlimited ticks\n", st, now+1)
	}
	return nil
}

// Restart relaunches the current session with the same type, window length and filter.
func (p *Profiler) Restart() error {
	if !p.IsProfiling() {
		return ErrNotProfiling
	}
	s := p.session
	var duration int64
	if !s.Indefinite() {
		// the session started one tick after it was requested
		duration = s.DisableTick - s.EnabledTick + 1
	}
	return p.StartSession(s.Type, duration, s.Filter)
}

// ResetSession discards the session as if none had been started.
func (p *Profiler) ResetSession() {
	p.session = nil
	ctx, cancel := p.storeContext()
	defer cancel()
	if err := p.store.Clear(ctx); err != nil {
		p.logger.Error("[ResetSession] clear session store failed. err=%+v", err)
	}
}

func (p *Profiler) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.storeTimeout)
}

// loadSession reads the store. It runs at construction and at tick start while no session is
// cached; once cached, the in-memory session wins and the store only receives saves.
func (p *Profiler) loadSession() {
	ctx, cancel := p.storeContext()
	defer cancel()
	s, err := p.store.Load(ctx)
	if err != nil {
		p.logger.Error("[loadSession] load session failed, keeping cached session. err=%+v", err)
		return
	}
	p.session = s
}

func (p *Profiler) saveSession() {
	if p.session == nil {
		return
	}
	ctx, cancel := p.storeContext()
	defer cancel()
	if err := p.store.Save(ctx, p.session); err != nil {
		p.logger.Error("[saveSession] save session failed. err=%+v", err)
	}
}

// record adds one call of label to the root frames and, when parent is set, to the parent's
// sub-frames. Both accumulators are independent.
func record(m common.FrameMap, label string, elapsed float64, parent string, oks, noks int64) {
	f := m.Ensure(label)
	f.Calls++
	f.Time += elapsed
	f.OKs += oks
	f.NOKs += noks
	if parent != "" {
		sub := m.Ensure(parent).Subs.Ensure(label)
		sub.Calls++
		sub.Time += elapsed
		sub.OKs += oks
		sub.NOKs += noks
	}
}

func (p *Profiler) report() {
	s := p.session
	onEndingTick := s.DisableTick == p.host.Time()
	switch s.Type {
	case common.SessionTypeStream:
		p.PrintProfile()
	case common.SessionTypeProfile:
		if onEndingTick {
			p.PrintProfile()
		}
	case common.SessionTypeEmail:
		if onEndingTick {
			p.EmailProfile()
		}
	case common.SessionTypeCallgrind:
		if onEndingTick {
			p.DownloadCallgrind()
		}
	}
}

func (p *Profiler) emitTickMetrics(s *common.Session, cpu float64) {
	if p.metrics == nil {
		return
	}
	tags := map[string]string{"session_type": s.Type.ToString()}
	if p.shard != "" {
		tags["shard"] = p.shard
	}
	if err := p.metrics.EmitTimer("tick.cpu", cpu, tags); err != nil {
		p.logger.Debug("[emitTickMetrics] emit tick.cpu failed. err=%+v", err)
	}
	if err := p.metrics.EmitGauge("session.frames", float64(len(s.Map)), tags); err != nil {
		p.logger.Debug("[emitTickMetrics] emit session.frames failed. err=%+v", err)
	}
	if err := p.metrics.Flush(); err != nil {
		p.logger.Debug("[emitTickMetrics] flush failed. err=%+v", err)
	}
}

func (p *Profiler) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.console, format, args...)
}

// PrintProfile prints the flat report to the console.
func (p *Profiler) PrintProfile() {
	p.printf("%s\n", p.Output(0))
}

// EmailProfile sends the flat report through the notifier.
func (p *Profiler) EmailProfile() {
	ctx, cancel := p.storeContext()
	defer cancel()
	subject := fmt.Sprintf("tick profiler report %s at tick %d", p.shardID(), p.host.Time())
	if err := p.notifier.Notify(ctx, subject, p.Output(defaultOutputLimit)); err != nil {
		p.logger.Error("[EmailProfile] notify failed. err=%+v", err)
	}
}

// DownloadCallgrind exports the current call graph through the exporter.
func (p *Profiler) DownloadCallgrind() {
	data, ok := p.Callgrind()
	if !ok {
		p.printf("No profile data to download\n")
		return
	}
	name := fmt.Sprintf("callgrind.%s.%d", p.shardID(), p.host.Time())
	ctx, cancel := p.storeContext()
	defer cancel()
	if err := p.exporter.Export(ctx, name, []byte(data)); err != nil {
		p.logger.Error("[DownloadCallgrind] export %s failed. err=%+v", name, err)
		return
	}
	p.printf("Callgrind profile exported as %s\n", name)
}

func (p *Profiler) shardID() string {
	shard := p.shard
	if shard == "" {
		shard = "local"
	}
	if p.ptr {
		shard += "-ptr"
	}
	return shard
}
