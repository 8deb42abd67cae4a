package indicator

import (
	"context"

	"indcore/internal/model"
)

// tokenIndicators holds live indicator instances for one token within a TF.
type tokenIndicators struct {
	instances []*Instance
}

// tfState is everything the engine keeps for one timeframe.
type tfState struct {
	tokens map[string]*tokenIndicators
	// dependents[benchmarkKey] lists the multi-series instances that take
	// that token as their benchmark.
	dependents map[string][]*Instance
	// lastFinal remembers each token's latest committed bar so instances
	// created later can be told about a benchmark that already traded.
	lastFinal map[string]model.Bar
	// warming holds instances created by a reload that still want history
	// replayed through Warm.
	warming map[*Instance]bool
}

func newTFState() *tfState {
	return &tfState{
		tokens:     make(map[string]*tokenIndicators, 64),
		dependents: make(map[string][]*Instance),
		lastFinal:  make(map[string]model.Bar, 64),
		warming:    make(map[*Instance]bool),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithPreviewOutputs makes ProcessPeek build named outputs. Off by default
// since previews run on every forming-candle tick.
func WithPreviewOutputs(on bool) Option {
	return func(e *Engine) { e.previewOutputs = on }
}

// Engine computes multiple indicators across multiple TFs for multiple tokens.
// Designed for single-goroutine usage: no locks needed.
type Engine struct {
	configs []TFConfig
	state   []*tfState
	tfIndex map[int]int

	previewOutputs bool
}

// NewEngine creates an indicator engine with the given per-TF indicator configs.
func NewEngine(configs []TFConfig, opts ...Option) (*Engine, error) {
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.setConfigs(configs, make([]*tfState, len(configs)))
	return e, nil
}

// MustNewEngine is NewEngine for fixed configs; it panics on error.
func MustNewEngine(configs []TFConfig, opts ...Option) *Engine {
	e, err := NewEngine(configs, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) setConfigs(configs []TFConfig, state []*tfState) {
	for i := range state {
		if state[i] == nil {
			state[i] = newTFState()
		}
	}
	e.configs = configs
	e.state = state
	e.tfIndex = make(map[int]int, len(configs))
	for i, cfg := range configs {
		e.tfIndex[cfg.TF] = i
	}
}

// Configs returns the active per-TF configs.
func (e *Engine) Configs() []TFConfig { return e.configs }

// Process takes a finalized TF candle and commits it to every indicator for
// that TF + token, and as a benchmark bar to every multi-series indicator
// that depends on the token.
// Returns indicator results (may include not-ready indicators with Ready=false).
// A candle whose bucket is not after the token's last committed bucket was
// already committed (stream replay, PEL redelivery) and is dropped.
func (e *Engine) Process(tfc model.TFCandle) []model.IndicatorResult {
	tfIdx, ok := e.tfIndex[tfc.TF]
	if !ok {
		return nil // TF not configured for indicators
	}
	st := e.state[tfIdx]
	bar := tfc.Bar()
	bar.Final = true
	key := tfc.Key()
	if last, seen := st.lastFinal[key]; seen && !bar.Start.After(last.Start) {
		return nil
	}

	ti, exists := st.tokens[key]
	if !exists {
		// First candle for this token + TF: create indicator instances
		ti = e.createTokenIndicators(tfIdx)
		st.tokens[key] = ti
		st.register(ti)
	}

	// Dependents first so a token that is its own benchmark pairs with the
	// same interval.
	for _, dep := range st.dependents[key] {
		dep.Update(Benchmark, bar, true, false)
	}
	st.lastFinal[key] = bar

	return e.collect(ti, tfc, bar, true, true)
}

// Committed reports whether a final candle for tfc's bucket, or a later
// one, has already been committed for its token.
func (e *Engine) Committed(tfc model.TFCandle) bool {
	tfIdx, ok := e.tfIndex[tfc.TF]
	if !ok {
		return false
	}
	last, seen := e.state[tfIdx].lastFinal[tfc.Key()]
	return seen && !tfc.TS.After(last.Start)
}

// ProcessPeek computes live indicator values for a forming TF candle.
// Does NOT mutate committed indicator state: safe for streaming updates
// every second.
// Returns nil if token hasn't been seen before (need at least one Process first).
func (e *Engine) ProcessPeek(tfc model.TFCandle) []model.IndicatorResult {
	tfIdx, ok := e.tfIndex[tfc.TF]
	if !ok {
		return nil
	}
	st := e.state[tfIdx]
	bar := tfc.Bar()
	bar.Final = false
	key := tfc.Key()

	for _, dep := range st.dependents[key] {
		dep.Update(Benchmark, bar, false, false)
	}

	ti, exists := st.tokens[key]
	if !exists {
		// Token hasn't been seeded by a completed candle yet: skip peek.
		// indengine calls Process() on completed candles first, so this is safe.
		return nil
	}
	return e.collect(ti, tfc, bar, false, e.previewOutputs)
}

func (e *Engine) collect(ti *tokenIndicators, tfc model.TFCandle, bar model.Bar, isFinal, includeOutputs bool) []model.IndicatorResult {
	results := make([]model.IndicatorResult, 0, len(ti.instances))
	for _, in := range ti.instances {
		res := in.Update(Primary, bar, isFinal, includeOutputs)
		if !res.Valid {
			continue
		}
		results = append(results, model.IndicatorResult{
			Name:     in.Label(),
			Token:    tfc.Token,
			Exchange: tfc.Exchange,
			TF:       tfc.TF,
			Value:    res.Value,
			Outputs:  res.Outputs,
			TS:       tfc.TS,
			Ready:    in.Ready(),
			Live:     !isFinal,
		})
	}
	return results
}

// Warm replays a historical committed candle into the instances that are
// still warming after a reload. Instances that carried their state over
// are not touched, so replayed bars are never counted twice. Tokens seen
// for the first time are created in the warming state. Returns the number
// of instance updates.
func (e *Engine) Warm(tfc model.TFCandle) int {
	tfIdx, ok := e.tfIndex[tfc.TF]
	if !ok || tfc.Forming {
		return 0
	}
	st := e.state[tfIdx]
	bar := tfc.Bar()
	key := tfc.Key()

	ti, exists := st.tokens[key]
	if !exists {
		ti = e.createTokenIndicators(tfIdx)
		st.tokens[key] = ti
		for _, in := range ti.instances {
			if bench := in.Benchmark(); bench != "" {
				st.dependents[bench] = append(st.dependents[bench], in)
			}
			st.warming[in] = true
		}
	}

	n := 0
	for _, dep := range st.dependents[key] {
		if st.warming[dep] {
			dep.Update(Benchmark, bar, true, false)
			n++
		}
	}
	if last, ok := st.lastFinal[key]; !ok || bar.Start.After(last.Start) {
		st.lastFinal[key] = bar
	}
	for _, in := range ti.instances {
		if st.warming[in] {
			in.Update(Primary, bar, true, false)
			n++
		}
	}
	return n
}

// EndWarmup marks every warming instance live and hands multi-series
// instances their benchmark's latest committed bar. Returns how many
// instances were warming.
func (e *Engine) EndWarmup() int {
	n := 0
	for _, st := range e.state {
		for in := range st.warming {
			st.seed(in)
		}
		n += len(st.warming)
		st.warming = make(map[*Instance]bool)
	}
	return n
}

// Reset re-initialises every indicator instance for a token ("exchange:token")
// across all TFs. Returns the number of instances reset.
func (e *Engine) Reset(key string) int {
	n := 0
	for _, st := range e.state {
		ti, ok := st.tokens[key]
		if !ok {
			continue
		}
		for _, in := range ti.instances {
			in.Reset()
			n++
		}
		delete(st.lastFinal, key)
	}
	return n
}

// Release returns pooled buffers held by every instance. The engine stays
// usable; buffers are reallocated on demand.
func (e *Engine) Release() {
	for _, st := range e.state {
		for _, ti := range st.tokens {
			for _, in := range ti.instances {
				in.Release()
			}
		}
	}
}

// Tokens returns the number of token states held for tf.
func (e *Engine) Tokens(tf int) int {
	idx, ok := e.tfIndex[tf]
	if !ok {
		return 0
	}
	return len(e.state[idx].tokens)
}

// Run consumes TF candles and emits indicator results. Blocks until ctx done.
// Forming candles are previewed, completed candles committed.
func (e *Engine) Run(ctx context.Context, tfCandleCh <-chan model.TFCandle, resultCh chan<- model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case tfc, ok := <-tfCandleCh:
			if !ok {
				return
			}
			var results []model.IndicatorResult
			if tfc.Forming {
				results = e.ProcessPeek(tfc)
			} else {
				results = e.Process(tfc)
			}
			for _, r := range results {
				select {
				case resultCh <- r:
				default:
					// drop if channel full
				}
			}
		}
	}
}

// createTokenIndicators creates fresh indicator instances for a TF config.
// Configs were validated up front, so Build cannot fail here.
func (e *Engine) createTokenIndicators(tfIdx int) *tokenIndicators {
	cfg := e.configs[tfIdx]
	ti := &tokenIndicators{instances: make([]*Instance, len(cfg.Indicators))}
	for i, ic := range cfg.Indicators {
		ti.instances[i] = MustBuild(ic)
	}
	return ti
}

// register indexes the multi-series instances of ti by benchmark and seeds
// each with the benchmark's latest committed bar, if one exists.
func (st *tfState) register(ti *tokenIndicators) {
	for _, in := range ti.instances {
		st.registerInstance(in)
	}
}

func (st *tfState) registerInstance(in *Instance) {
	bench := in.Benchmark()
	if bench == "" {
		return
	}
	st.dependents[bench] = append(st.dependents[bench], in)
	st.seed(in)
}

// seed replays the benchmark's latest committed bar into a new instance.
func (st *tfState) seed(in *Instance) {
	bench := in.Benchmark()
	if bench == "" {
		return
	}
	if bar, ok := st.lastFinal[bench]; ok {
		in.Update(Benchmark, bar, true, false)
	}
}

// rebuildDependents recomputes the benchmark index after instances changed.
func (st *tfState) rebuildDependents() {
	st.dependents = make(map[string][]*Instance, len(st.dependents))
	for _, ti := range st.tokens {
		for _, in := range ti.instances {
			if bench := in.Benchmark(); bench != "" {
				st.dependents[bench] = append(st.dependents[bench], in)
			}
		}
	}
}
