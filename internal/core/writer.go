package core

import (
	"context"
	"fmt"
	"strings"
)

// Strategy selects how bulk tables are written.
type Strategy string

const (
	// StrategyImmediate writes every payload as soon as the row produces it.
	StrategyImmediate Strategy = "immediate"
	// StrategyBatched queues payloads and writes them in grouped upserts.
	StrategyBatched Strategy = "batched"
)

// ParseStrategy parses a strategy name. Empty selects batched.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyBatched:
		return StrategyBatched, nil
	case StrategyImmediate:
		return StrategyImmediate, nil
	}
	return "", fmt.Errorf("unknown write strategy %q (want immediate or batched)", s)
}

// Table names a bulk-written table.
type Table string

const (
	TableWhitespace Table = "whitespace_outlets"
	TableCustomers  Table = "customers"
	TableAttributes Table = "customer_attributes"
	TablePayments   Table = "payment_settings"
	TableMappings   Table = "seller_mappings"
)

// Kind returns the error kind reported for a failed write to the table.
func (t Table) Kind() ErrorKind {
	switch t {
	case TableWhitespace:
		return KindWhitespaceSaveFailed
	case TablePayments:
		return KindPaymentSaveFailed
	case TableMappings:
		return KindSellerMappingSaveFailed
	default:
		return KindCustomerSaveFailed
	}
}

// Failure is a write that could not be applied for a row.
type Failure struct {
	Row   int
	Table Table
	Err   error
}

// Writer funnels every bulk-table mutation of a batch. The immediate
// writer returns store errors from the call itself; the batched writer
// returns nil there and reports failures from Flush. Both upsert on the
// same natural keys so they converge on the same stored state.
type Writer interface {
	Customer(ctx context.Context, row int, c Customer) error
	Attributes(ctx context.Context, row int, a CustomerAttributes) error
	Whitespace(ctx context.Context, row int, w WhitespaceOutlet) error
	Payment(ctx context.Context, row int, p PaymentSettings) error
	SellerMapping(ctx context.Context, row int, m SellerMapping) error
	Flush(ctx context.Context) []Failure
}

// NewWriter returns the writer for a strategy.
func NewWriter(strategy Strategy, stores Stores, scope Scope, batchSize int) Writer {
	if strategy == StrategyImmediate {
		return &ImmediateWriter{stores: stores, scope: scope}
	}
	return NewBatchWriter(stores, scope, batchSize)
}

// ============================================================================
// Immediate writer
// ============================================================================

// ImmediateWriter issues one store call per payload.
type ImmediateWriter struct {
	stores Stores
	scope  Scope
}

func (w *ImmediateWriter) Customer(ctx context.Context, _ int, c Customer) error {
	return w.stores.Customers.Upsert(ctx, w.scope, []Customer{c})
}

func (w *ImmediateWriter) Attributes(ctx context.Context, _ int, a CustomerAttributes) error {
	return w.stores.Customers.SaveAttributes(ctx, []CustomerAttributes{a})
}

func (w *ImmediateWriter) Whitespace(ctx context.Context, _ int, o WhitespaceOutlet) error {
	return w.stores.Whitespace.Upsert(ctx, []WhitespaceOutlet{o})
}

func (w *ImmediateWriter) Payment(ctx context.Context, _ int, p PaymentSettings) error {
	return w.stores.Payments.Upsert(ctx, []PaymentSettings{p})
}

func (w *ImmediateWriter) SellerMapping(ctx context.Context, _ int, m SellerMapping) error {
	return w.stores.Mappings.Upsert(ctx, []SellerMapping{m})
}

// Flush has nothing to do; every write already happened.
func (w *ImmediateWriter) Flush(context.Context) []Failure { return nil }

// ============================================================================
// Batched writer
// ============================================================================

// DefaultBatchSize is the number of payloads per grouped upsert.
const DefaultBatchSize = 500

type queued[V any] struct {
	row int
	val V
}

// queue holds one payload per natural key. A later put for the same key
// replaces the payload and the owning row.
type queue[K comparable, V any] struct {
	index map[K]int
	items []queued[V]
}

func newQueue[K comparable, V any]() *queue[K, V] {
	return &queue[K, V]{index: make(map[K]int)}
}

func (q *queue[K, V]) put(key K, row int, v V) {
	if i, ok := q.index[key]; ok {
		q.items[i] = queued[V]{row: row, val: v}
		return
	}
	q.index[key] = len(q.items)
	q.items = append(q.items, queued[V]{row: row, val: v})
}

func (q *queue[K, V]) drain() []queued[V] {
	items := q.items
	q.items = nil
	q.index = make(map[K]int)
	return items
}

// BatchWriter queues payloads per table and writes them in chunks on Flush.
// Not safe for concurrent use; the engine serializes calls.
type BatchWriter struct {
	stores    Stores
	scope     Scope
	batchSize int

	whitespace *queue[string, WhitespaceOutlet]
	customers  *queue[CustomerKey, Customer]
	attributes *queue[int64, CustomerAttributes]
	payments   *queue[int64, PaymentSettings]
	mappings   *queue[MappingKey, SellerMapping]
}

// NewBatchWriter creates a batched writer. Non-positive sizes use
// DefaultBatchSize.
func NewBatchWriter(stores Stores, scope Scope, batchSize int) *BatchWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchWriter{
		stores:     stores,
		scope:      scope,
		batchSize:  batchSize,
		whitespace: newQueue[string, WhitespaceOutlet](),
		customers:  newQueue[CustomerKey, Customer](),
		attributes: newQueue[int64, CustomerAttributes](),
		payments:   newQueue[int64, PaymentSettings](),
		mappings:   newQueue[MappingKey, SellerMapping](),
	}
}

func (w *BatchWriter) Customer(_ context.Context, row int, c Customer) error {
	w.customers.put(c.Key(), row, c)
	return nil
}

func (w *BatchWriter) Attributes(_ context.Context, row int, a CustomerAttributes) error {
	w.attributes.put(a.CustomerID, row, a)
	return nil
}

func (w *BatchWriter) Whitespace(_ context.Context, row int, o WhitespaceOutlet) error {
	w.whitespace.put(o.CustomerCode, row, o)
	return nil
}

func (w *BatchWriter) Payment(_ context.Context, row int, p PaymentSettings) error {
	w.payments.put(p.CompanyID, row, p)
	return nil
}

func (w *BatchWriter) SellerMapping(_ context.Context, row int, m SellerMapping) error {
	w.mappings.put(m.Key(), row, m)
	return nil
}

// Flush writes every queued payload. Tables are written in dependency
// order; a row that fails in one table has its payloads for the tables
// after it dropped, matching what the immediate writer does when a row
// stops at its first failing stage.
func (w *BatchWriter) Flush(ctx context.Context) []Failure {
	failed := make(map[int]bool)
	var out []Failure

	out = append(out, flushTable(ctx, TableWhitespace, w.whitespace.drain(), w.batchSize, failed,
		func(ctx context.Context, v []WhitespaceOutlet) error { return w.stores.Whitespace.Upsert(ctx, v) })...)
	out = append(out, flushTable(ctx, TableCustomers, w.customers.drain(), w.batchSize, failed,
		func(ctx context.Context, v []Customer) error { return w.stores.Customers.Upsert(ctx, w.scope, v) })...)
	out = append(out, flushTable(ctx, TableAttributes, w.attributes.drain(), w.batchSize, failed,
		func(ctx context.Context, v []CustomerAttributes) error { return w.stores.Customers.SaveAttributes(ctx, v) })...)
	out = append(out, flushTable(ctx, TablePayments, w.payments.drain(), w.batchSize, failed,
		func(ctx context.Context, v []PaymentSettings) error { return w.stores.Payments.Upsert(ctx, v) })...)
	out = append(out, flushTable(ctx, TableMappings, w.mappings.drain(), w.batchSize, failed,
		func(ctx context.Context, v []SellerMapping) error { return w.stores.Mappings.Upsert(ctx, v) })...)

	return out
}

// flushTable writes items in chunks of size. When a chunk fails it is
// retried one payload at a time so only the offending rows are reported.
func flushTable[V any](
	ctx context.Context,
	table Table,
	items []queued[V],
	size int,
	failed map[int]bool,
	write func(context.Context, []V) error,
) []Failure {
	pending := items[:0]
	for _, it := range items {
		if !failed[it.row] {
			pending = append(pending, it)
		}
	}

	var out []Failure
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		chunk := pending[start:end]

		vals := make([]V, len(chunk))
		for i, it := range chunk {
			vals[i] = it.val
		}
		if err := write(ctx, vals); err == nil {
			continue
		}

		for _, it := range chunk {
			if err := write(ctx, []V{it.val}); err != nil {
				failed[it.row] = true
				out = append(out, Failure{Row: it.row, Table: table, Err: err})
			}
		}
	}
	return out
}
