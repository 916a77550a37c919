package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/pallet-allocator/internal/distributor"
	"github.com/eugenenazirov/pallet-allocator/internal/domain"
	"github.com/eugenenazirov/pallet-allocator/internal/placement"
	"github.com/eugenenazirov/pallet-allocator/internal/planner"
)

// ChannelRule selects the capacity category and placement policy of a channel.
type ChannelRule struct {
	Category domain.Category
	Policy   placement.Policy
}

// DefaultChannelRule applies to channels without an explicit rule.
var DefaultChannelRule = ChannelRule{Category: domain.CategoryDefault, Policy: placement.VarietyFirst}

// Source yields the order lines of one run.
type Source interface {
	Lines(ctx context.Context) ([]domain.OrderLine, error)
}

// Sink receives the outcome of a successful run.
type Sink interface {
	Write(ctx context.Context, outcome Outcome) error
}

// Store is the persistence the runner needs around a run.
type Store interface {
	Tiers(ctx context.Context) (domain.TierTable, error)
	LoadNumbering(ctx context.Context) (domain.NumberingState, error)
	SaveNumbering(ctx context.Context, expected, next domain.NumberingState) error
}

// StaticSource serves a fixed set of lines.
type StaticSource []domain.OrderLine

// Lines returns the lines as given.
func (s StaticSource) Lines(context.Context) ([]domain.OrderLine, error) {
	return s, nil
}

type discard struct{}

func (discard) Write(context.Context, Outcome) error { return nil }

// Discard is a Sink that drops the outcome.
var Discard Sink = discard{}

// Runner executes allocation runs one at a time.
type Runner struct {
	store       Store
	planner     planner.Planner
	distributor *distributor.Distributor
	engine      *placement.Engine
	logger      *zap.Logger

	channels   map[string]ChannelRule
	polandMax  int
	directType domain.CarrierType
	observe    func(Stage)
	newID      func() string

	running sync.Mutex

	stageMu sync.RWMutex
	stage   Stage
}

// Option configures a Runner.
type Option func(*Runner)

// WithChannel registers the rule for a channel code.
func WithChannel(code string, rule ChannelRule) Option {
	return func(r *Runner) {
		r.channels[strings.TrimSpace(code)] = rule
	}
}

// WithPolandUserMax caps the per-carrier capacity of Poland plans.
func WithPolandUserMax(max int) Option {
	return func(r *Runner) {
		r.polandMax = max
	}
}

// WithDirectType sets the carrier type built for Direct channels.
func WithDirectType(t domain.CarrierType) Option {
	return func(r *Runner) {
		r.directType = t
	}
}

// WithStageObserver registers a callback invoked on every stage transition.
func WithStageObserver(fn func(Stage)) Option {
	return func(r *Runner) {
		r.observe = fn
	}
}

// New constructs a Runner. store may be nil when only PlanRun is used.
func New(store Store, p planner.Planner, d *distributor.Distributor, e *placement.Engine, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	directType, _ := planner.DefaultRules().Type(domain.CarrierEuro)

	r := &Runner{
		store:       store,
		planner:     p,
		distributor: d,
		engine:      e,
		logger:      logger,
		channels:    make(map[string]ChannelRule),
		directType:  directType,
		newID:       uuid.NewString,
		stage:       StageIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stage returns the current stage of the run state machine.
func (r *Runner) Stage() Stage {
	r.stageMu.RLock()
	defer r.stageMu.RUnlock()

	return r.stage
}

func (r *Runner) setStage(s Stage) {
	r.stageMu.Lock()
	r.stage = s
	r.stageMu.Unlock()

	if r.observe != nil {
		r.observe(s)
	}
}

// PlanRun allocates lines without any I/O. numbering is not modified; the
// advanced sequence is returned in the Outcome.
func (r *Runner) PlanRun(lines []domain.OrderLine, numbering domain.NumberingState, tiers planner.TierLookup) Outcome {
	runID := r.newID()
	if !r.running.TryLock() {
		return fatal(runID, numbering, ErrRunInProgress)
	}
	defer r.running.Unlock()
	defer r.setStage(StageIdle)

	return r.planRun(runID, lines, numbering, tiers)
}

// Execute performs a full run: read lines, plan, commit the numbering and
// hand the result to sink. Nothing is written when the numbering cannot be
// loaded or persisted.
func (r *Runner) Execute(ctx context.Context, source Source, sink Sink) Outcome {
	runID := r.newID()
	if !r.running.TryLock() {
		return fatal(runID, domain.NumberingState{}, ErrRunInProgress)
	}
	defer r.running.Unlock()
	defer r.setStage(StageIdle)

	logger := r.logger.With(zap.String("run_id", runID))
	abort := func(o Outcome) Outcome {
		logger.Error("allocation run failed", zap.Error(o.Cause))
		return o
	}

	if r.store == nil {
		return abort(fatal(runID, domain.NumberingState{}, errors.New("runner has no store")))
	}

	lines, err := source.Lines(ctx)
	if err != nil {
		return abort(fatal(runID, domain.NumberingState{}, fmt.Errorf("read order lines: %w", err)))
	}
	loaded, err := r.store.LoadNumbering(ctx)
	if err != nil {
		return abort(fatal(runID, domain.NumberingState{}, fmt.Errorf("load numbering: %w", err)))
	}
	tiers, err := r.store.Tiers(ctx)
	if err != nil {
		return abort(fatal(runID, loaded, fmt.Errorf("load capacity tiers: %w", err)))
	}

	outcome := r.planRun(runID, lines, loaded, tiers)
	if outcome.Kind == Fatal {
		return abort(outcome)
	}

	if outcome.Numbering != loaded {
		if err := r.store.SaveNumbering(ctx, loaded, outcome.Numbering); err != nil {
			return abort(fatal(runID, loaded, fmt.Errorf("persist numbering: %w", err)))
		}
	}
	if err := sink.Write(ctx, outcome); err != nil {
		if outcome.Numbering != loaded {
			logger.Error("carrier numbers committed without written rows",
				zap.Int("first_number", loaded.LastNumber+1),
				zap.Int("last_number", outcome.Numbering.LastNumber),
				zap.String("last_letter", outcome.Numbering.LastLetter),
				zap.Error(err),
			)
		}
		return abort(fatal(runID, outcome.Numbering, fmt.Errorf("write results: %w", err)))
	}
	r.setStage(StageWritten)

	logger.Info("allocation run written",
		zap.String("kind", string(outcome.Kind)),
		zap.Int("rows", len(outcome.Rows)),
		zap.Int("unplaced", len(outcome.Unplaced)),
		zap.Int("last_number", outcome.Numbering.LastNumber),
	)
	return outcome
}

func (r *Runner) planRun(runID string, lines []domain.OrderLine, numbering domain.NumberingState, tiers planner.TierLookup) Outcome {
	logger := r.logger.With(zap.String("run_id", runID))

	records, unplaced := intake(lines)
	for _, u := range unplaced {
		logUnplaced(logger, u)
	}
	if len(records) == 0 {
		logger.Info("allocation run has no eligible demand", zap.Int("lines", len(lines)))
		return Outcome{RunID: runID, Kind: EmptyInput, Unplaced: unplaced, Numbering: numbering, Cause: ErrNoEligibleDemand}
	}

	pool := domain.NewPool(records)
	processed := domain.NewProcessedSet()
	keys := logisticKeys(records)
	r.setStage(StageLogisticsEnumerated)

	state := numbering
	var rows []domain.Row
	for _, key := range keys {
		res, err := r.runGroup(logger, key, pool, processed, state, tiers)
		if err != nil {
			logger.Error("logistic group failed", zap.String("logistic_key", key), zap.Error(err))
			return fatal(runID, numbering, err)
		}
		state = res.numbering
		rows = append(rows, res.rows...)
		for _, u := range res.unplaced {
			logUnplaced(logger, u)
		}
		unplaced = append(unplaced, res.unplaced...)
	}

	if pool.Len() > 0 {
		logger.Warn("records left after the last logistic group", zap.Int("records", pool.Len()))
	}
	for _, rec := range pool.Records() {
		u := unplacedRecord(rec, ReasonImpossiblePlacement, "ratio does not fit any carrier of the group")
		logUnplaced(logger, u)
		unplaced = append(unplaced, u)
	}

	kind := Completed
	for _, u := range unplaced {
		if u.Reason.Unmet() {
			kind = PartialWithUnplaced
			break
		}
	}
	logger.Info("allocation run planned",
		zap.String("kind", string(kind)),
		zap.Int("groups", len(keys)),
		zap.Int("rows", len(rows)),
		zap.Int("unplaced", len(unplaced)),
		zap.Int("processed", processed.Len()),
		zap.Int("carriers", state.LastNumber-numbering.LastNumber),
	)
	return Outcome{RunID: runID, Kind: kind, Rows: rows, Unplaced: unplaced, Numbering: state}
}

type groupResult struct {
	rows      []domain.Row
	unplaced  []Unplaced
	numbering domain.NumberingState
}

// runGroup plans, distributes and places one logistic group. The channel of
// the first record decides the rule for the whole group.
func (r *Runner) runGroup(logger *zap.Logger, key string, pool *domain.Pool, processed *domain.ProcessedSet,
	numbering domain.NumberingState, tiers planner.TierLookup) (groupResult, error) {
	res := groupResult{numbering: numbering}

	for _, rec := range pool.Satisfied(key, processed) {
		res.unplaced = append(res.unplaced, unplacedRecord(rec, ReasonAlreadySatisfied, "product code already placed by an earlier logistic group"))
		pool.Remove(rec)
	}

	records := pool.Eligible(key, processed)
	if len(records) == 0 {
		return res, nil
	}
	head := records[0]
	rule := r.channelRule(head.ChannelCode)
	total := int(domain.TotalRatio(records).Ceil().IntPart())
	logistic := distributor.Logistic{ChannelCode: head.ChannelCode, Label: head.Label, Date: head.ShippingDate}

	glog := logger.With(
		zap.String("logistic_key", key),
		zap.String("category", string(rule.Category)),
		zap.String("policy", string(rule.Policy)),
		zap.Int("total", total),
	)

	var requests []distributor.Request
	if rule.Policy == placement.Direct {
		requests = append(requests, distributor.Request{
			Type: r.directType, CarrierCount: 1, PerCarrier: total, Total: total, Logistic: logistic,
		})
	} else {
		var opts []planner.Option
		if rule.Category == domain.CategoryPoland && r.polandMax > 0 {
			opts = append(opts, planner.WithUserMax(r.polandMax))
		}
		plan, err := r.planner.Plan(tiers, total, rule.Category, opts...)
		if errors.Is(err, planner.ErrNoCapacityTier) || (err == nil && plan.Empty()) {
			glog.Warn("no capacity tier for logistic group")
			detail := fmt.Sprintf("no %s tier covers %d", rule.Category, total)
			for _, rec := range records {
				res.unplaced = append(res.unplaced, unplacedRecord(rec, ReasonNoCapacityTier, detail))
				pool.Remove(rec)
			}
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("plan logistic group %s: %w", key, err)
		}
		for _, e := range plan.Entries {
			requests = append(requests, distributor.Request{
				Type: e.Type, CarrierCount: e.CarrierCount, PerCarrier: e.PerCarrier, Total: e.Quantity, Logistic: logistic,
			})
		}
	}
	r.setStage(StagePlanned)

	state := numbering
	carry := 0
	var carriers []*domain.Carrier
	for _, req := range requests {
		req.Total += carry
		dist, err := r.distributor.Distribute(req, state)
		if err != nil {
			return res, fmt.Errorf("distribute logistic group %s: %w", key, err)
		}
		carriers = append(carriers, dist.Carriers...)
		carry = dist.Remainder
		state = dist.Numbering
	}
	if carry > 0 {
		glog.Warn("planned carriers do not cover the group total", zap.Int("undistributed", carry))
	}
	r.setStage(StageDistributed)

	rows, err := r.engine.Place(placement.Batch{
		Carriers:    carriers,
		Pool:        pool,
		Processed:   processed,
		LogisticKey: key,
		Policy:      rule.Policy,
	})
	if err != nil {
		return res, fmt.Errorf("place logistic group %s: %w", key, err)
	}
	r.setStage(StagePlaced)

	glog.Debug("logistic group placed", zap.Int("carriers", len(carriers)), zap.Int("rows", len(rows)))
	res.rows = rows
	res.numbering = state
	return res, nil
}

func (r *Runner) channelRule(code string) ChannelRule {
	rule, ok := r.channels[code]
	if !ok {
		return DefaultChannelRule
	}
	if rule.Category == "" {
		rule.Category = domain.CategoryDefault
	}
	if rule.Policy == "" {
		rule.Policy = placement.VarietyFirst
	}
	return rule
}

// demandKey identifies a record within a run. A product code may repeat
// across logistic groups but not within one.
type demandKey struct {
	logisticKey string
	productCode string
}

// intake parses lines into demand records. Rejected lines are reported with
// the reason they were rejected.
func intake(lines []domain.OrderLine) ([]*domain.DemandRecord, []Unplaced) {
	var (
		records  []*domain.DemandRecord
		unplaced []Unplaced
	)
	seen := make(map[demandKey]struct{}, len(lines))

	for _, line := range lines {
		rec, err := domain.NewDemandRecord(line)
		if err != nil {
			reason := ReasonInvalidRecord
			if errors.Is(err, domain.ErrMalformedRatio) {
				reason = ReasonMalformedRatio
			}
			unplaced = append(unplaced, Unplaced{
				ProductCode: strings.TrimSpace(line.ProductCode),
				LogisticKey: strings.TrimSpace(line.LogisticKey),
				Quantity:    line.Quantity,
				Ratio:       line.Ratio,
				Reason:      reason,
				Detail:      err.Error(),
			})
			continue
		}
		key := demandKey{logisticKey: rec.LogisticKey, productCode: rec.ProductCode}
		if _, dup := seen[key]; dup {
			unplaced = append(unplaced, unplacedRecord(rec, ReasonInvalidRecord, "duplicate product code in logistic group"))
			continue
		}
		seen[key] = struct{}{}
		records = append(records, rec)
	}
	return records, unplaced
}

// logisticKeys returns the distinct keys in order of first appearance.
func logisticKeys(records []*domain.DemandRecord) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := seen[rec.LogisticKey]; ok {
			continue
		}
		seen[rec.LogisticKey] = struct{}{}
		keys = append(keys, rec.LogisticKey)
	}
	return keys
}

func unplacedRecord(rec *domain.DemandRecord, reason Reason, detail string) Unplaced {
	return Unplaced{
		ProductCode: rec.ProductCode,
		LogisticKey: rec.LogisticKey,
		Quantity:    rec.Quantity,
		Ratio:       rec.Ratio.String(),
		Reason:      reason,
		Detail:      detail,
	}
}

func logUnplaced(logger *zap.Logger, u Unplaced) {
	log, msg := logger.Warn, "record not placed"
	if !u.Reason.Unmet() {
		log, msg = logger.Info, "repeated record already satisfied"
	}
	log(msg,
		zap.String("product_code", u.ProductCode),
		zap.String("logistic_key", u.LogisticKey),
		zap.Int("quantity", u.Quantity),
		zap.String("reason", string(u.Reason)),
		zap.String("detail", u.Detail),
	)
}
