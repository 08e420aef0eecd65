package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ContextCheckInterval is how often (in rows) loops check for cancellation.
var ContextCheckInterval = 100

// Observer is notified when a batch finishes.
type Observer interface {
	BatchCompleted(strategy Strategy, rows int, entries []ErrorEntry, elapsed time.Duration)
}

// Options tune an Engine.
type Options struct {
	Strategy  Strategy
	BatchSize int
	// Workers bounds how many rows run the address to seller-mapping
	// stages at once. Values below 2 process rows sequentially.
	Workers  int
	Observer Observer
}

// Engine reconciles outlet batches against the stores.
type Engine struct {
	stores   Stores
	settings Settings
	norm     *Normalizer
	validate *validator.Validate
	opts     Options
}

// New creates an engine. The settings' strip pattern is compiled here.
func New(stores Stores, settings Settings, opts Options) (*Engine, error) {
	if stores.Vendors == nil || stores.Customers == nil || stores.Whitespace == nil ||
		stores.Addresses == nil || stores.Companies == nil || stores.Payments == nil ||
		stores.Mappings == nil || stores.Regions == nil || stores.Sites == nil {
		return nil, errors.New("engine: every store must be set")
	}
	if settings == nil {
		return nil, errors.New("engine: settings are required")
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyBatched
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	norm, err := NewNormalizer(settings.StripPattern())
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		stores:   stores,
		settings: settings,
		norm:     norm,
		validate: newRecordValidator(),
		opts:     opts,
	}, nil
}

// newRecordValidator checks OutletRecord struct tags, reporting fields by
// their feed column name.
func newRecordValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		return f.Interface().(FeedValue).String()
	}, FeedValue(""))
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Request is one batch submitted to the engine.
type Request struct {
	StoreID    int64
	ApproverID int64
	Records    []OutletRecord
	// Strategy overrides the engine's default when set.
	Strategy Strategy
	Logger   *slog.Logger
}

// Result is the outcome of a batch. Errors is empty when every row
// succeeded.
type Result struct {
	BatchID  uuid.UUID    `json:"batch_id"`
	Strategy Strategy     `json:"strategy"`
	Rows     int          `json:"rows"`
	Errors   []ErrorEntry `json:"errors"`
}

type rowState struct {
	idx      int
	rec      OutletRecord
	key      string
	status   Statuses
	vendor   Vendor
	customer Customer
}

type batch struct {
	id       uuid.UUID
	scope    Scope
	strategy Strategy
	writer   Writer
	errs     *Collector
	log      *slog.Logger
	rows     []rowState
	stopped  map[int]bool // rows excluded from later stages
	vendors  map[string]Vendor
	mappings map[MappingKey]int64

	mu        sync.Mutex
	addresses map[int64]int64 // customer id -> default address saved by this batch
}

// defaultAddress returns the default address id known for the row's
// customer, including one saved earlier in this batch.
func (b *batch) defaultAddress(r *rowState) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.addresses[r.customer.ID]; ok {
		return id
	}
	return r.customer.DefaultShippingID
}

func (b *batch) rememberAddress(customerID, addressID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[customerID] = addressID
}

func (b *batch) fail(r *rowState, err error) {
	b.stopped[r.idx] = true
	b.errs.Add(r.idx, r.key, err)
	b.log.Warn("row failed", "row", r.idx, "row_key", r.key, "error", err)
}

func (b *batch) foldFailures(failures []Failure) {
	for _, f := range failures {
		r := &b.rows[f.Row]
		b.fail(r, rowErr(f.Table.Kind(), f.Err))
	}
}

// Process runs one batch. Row failures are reported in the result and
// never stop the batch; an error is returned only when the batch could
// not run at all (store lookup before the row loop failed, or ctx was
// cancelled).
func (e *Engine) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	strategy := e.opts.Strategy
	if req.Strategy != "" {
		strategy = req.Strategy
	}

	info, err := e.stores.Sites.Store(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("resolve store %d: %w", req.StoreID, err)
	}
	scope := Scope{
		StoreID:    info.StoreID,
		WebsiteID:  info.WebsiteID,
		StoreName:  info.Name,
		Currency:   info.Currency,
		ApproverID: req.ApproverID,
	}.Elevate()

	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	b := &batch{
		id:       id,
		scope:    scope,
		strategy: strategy,
		writer:   NewWriter(strategy, e.stores, scope, e.opts.BatchSize),
		errs:     &Collector{},
		log:      logger.With("batch_id", id.String(), "store_id", scope.StoreID, "strategy", string(strategy)),
		stopped:  make(map[int]bool),

		addresses: make(map[int64]int64),
	}
	b.log.Info("batch started", "rows", len(req.Records))

	if err := e.run(ctx, b, req.Records); err != nil {
		b.log.Error("batch aborted", "error", err)
		return nil, err
	}

	result := &Result{
		BatchID:  id,
		Strategy: strategy,
		Rows:     len(req.Records),
		Errors:   b.errs.Entries(),
	}
	elapsed := time.Since(start)
	b.log.Info("batch completed",
		"rows", result.Rows,
		"errors", len(result.Errors),
		"duration_ms", elapsed.Milliseconds(),
	)
	if e.opts.Observer != nil {
		e.opts.Observer.BatchCompleted(strategy, result.Rows, result.Errors, elapsed)
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, b *batch, records []OutletRecord) error {
	b.rows = make([]rowState, len(records))
	for i, rec := range records {
		rec = e.norm.Normalize(rec)
		b.rows[i] = rowState{idx: i, rec: rec, key: rec.RowKey()}
	}

	if err := e.classify(ctx, b); err != nil {
		return err
	}
	b.foldFailures(b.writer.Flush(ctx))

	if err := e.resolveCustomers(ctx, b); err != nil {
		return err
	}
	b.foldFailures(b.writer.Flush(ctx))

	if err := e.reconcileRows(ctx, b); err != nil {
		return err
	}
	b.foldFailures(b.writer.Flush(ctx))
	return nil
}

// active returns the rows still eligible for later stages.
func (b *batch) active() []*rowState {
	out := make([]*rowState, 0, len(b.rows))
	for i := range b.rows {
		if !b.stopped[i] {
			out = append(out, &b.rows[i])
		}
	}
	return out
}

// resolveCustomers re-reads customers after their writes so every row
// knows its id, creation time and default address, then saves the
// lifecycle attributes.
func (e *Engine) resolveCustomers(ctx context.Context, b *batch) error {
	rows := b.active()
	if len(rows) == 0 {
		return nil
	}

	codes := make([]string, 0, len(rows))
	vendorIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.rec.CustomerCode.String())
		vendorIDs = append(vendorIDs, r.vendor.SellerID)
	}
	customers, err := e.stores.Customers.FindByKeys(ctx, uniqueStrings(codes), uniqueInts(vendorIDs))
	if err != nil {
		return fmt.Errorf("reload customers: %w", err)
	}

	for _, r := range rows {
		c, ok := customers[CustomerKey{Code: r.rec.CustomerCode.String(), VendorID: r.vendor.SellerID}]
		if !ok || c.ID == 0 {
			b.fail(r, rowErr(KindCustomerSaveFailed, errors.New("customer not found after save")))
			continue
		}
		r.customer = c
		attrs := CustomerAttributes{
			CustomerID:       c.ID,
			ISRStatus:        r.status.Company,
			ActivationStatus: r.status.Activation,
		}
		if err := b.writer.Attributes(ctx, r.idx, attrs); err != nil {
			b.fail(r, rowErr(KindCustomerSaveFailed, err))
		}
	}
	return nil
}

// reconcileRows runs the per-row pipeline for every resolved customer.
func (e *Engine) reconcileRows(ctx context.Context, b *batch) error {
	rows := b.active()
	if len(rows) == 0 {
		return nil
	}

	retailerIDs := make([]int64, 0, len(rows))
	sellerCodes := make([]string, 0, len(rows))
	for _, r := range rows {
		retailerIDs = append(retailerIDs, r.customer.ID)
		sellerCodes = append(sellerCodes, r.rec.SellerCode.String())
	}
	mappings, err := e.stores.Mappings.FindIDs(ctx, uniqueInts(retailerIDs), uniqueStrings(sellerCodes))
	if err != nil {
		return fmt.Errorf("load seller mappings: %w", err)
	}
	b.mappings = mappings

	if e.opts.Workers < 2 {
		for i, r := range rows {
			if i%ContextCheckInterval == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			e.finishRow(ctx, b, r, b.writer)
		}
		return nil
	}

	// Rows of one customer code run in order on a single worker. The
	// company lookup falls back to the code, so those rows share a company
	// and its check-then-create must not interleave. The batched writer's
	// queues are not concurrent-safe, so its calls are serialized.
	w := b.writer
	if _, ok := w.(*BatchWriter); ok {
		w = &lockedWriter{w: w}
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, group := range groupByCustomerCode(rows) {
		g.Go(func() error {
			for _, r := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				for _, re := range e.pipeline(gctx, b, r, w) {
					mu.Lock()
					b.fail(r, re)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// groupByCustomerCode splits rows by customer code, keeping row order
// within each group and first-appearance order across groups.
func groupByCustomerCode(rows []*rowState) [][]*rowState {
	index := make(map[string]int, len(rows))
	var groups [][]*rowState
	for _, r := range rows {
		code := r.rec.CustomerCode.String()
		i, ok := index[code]
		if !ok {
			i = len(groups)
			index[code] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

func (e *Engine) finishRow(ctx context.Context, b *batch, r *rowState, w Writer) {
	for _, re := range e.pipeline(ctx, b, r, w) {
		b.fail(r, re)
	}
	if !b.stopped[r.idx] {
		b.log.Debug("row reconciled", "row", r.idx, "customer_code", r.key)
	}
}

// lockedWriter serializes access to a Writer.
type lockedWriter struct {
	mu sync.Mutex
	w  Writer
}

func (l *lockedWriter) Customer(ctx context.Context, row int, c Customer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Customer(ctx, row, c)
}

func (l *lockedWriter) Attributes(ctx context.Context, row int, a CustomerAttributes) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Attributes(ctx, row, a)
}

func (l *lockedWriter) Whitespace(ctx context.Context, row int, o WhitespaceOutlet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Whitespace(ctx, row, o)
}

func (l *lockedWriter) Payment(ctx context.Context, row int, p PaymentSettings) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Payment(ctx, row, p)
}

func (l *lockedWriter) SellerMapping(ctx context.Context, row int, m SellerMapping) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.SellerMapping(ctx, row, m)
}

func (l *lockedWriter) Flush(ctx context.Context) []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush(ctx)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func uniqueInts(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
