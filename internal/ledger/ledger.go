package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names one of the append-only order logs.
type Kind string

const (
	BuyPlaced  Kind = "buy_placed"
	SellPlaced Kind = "sell_placed"
	BuyFilled  Kind = "buy_filled"
	SellFilled Kind = "sell_filled"
)

// Record is one line of a ledger file. Records are immutable once written;
// corrections require appending a compensating record.
type Record struct {
	Timestamp   time.Time        `json:"timestamp"`
	Price       decimal.Decimal  `json:"price"`
	Quantity    decimal.Decimal  `json:"quantity"`
	OrderID     string           `json:"order_id"`
	QuoteAmount *decimal.Decimal `json:"quote_amount,omitempty"`
}

// Ledger owns the four JSONL logs under a state directory. It is
// single-writer: concurrent processes on the same directory must be fenced
// with an instance lock.
type Ledger struct {
	root string
	mu   sync.Mutex
}

func New(root string) (*Ledger, error) {
	if root == "" {
		return nil, errors.New("state dir required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Ledger{root: root}, nil
}

// Append writes one record as a single line followed by fsync. An I/O error
// is returned to the caller, never swallowed.
func (l *Ledger) Append(kind Kind, rec Record) error {
	if rec.OrderID == "" {
		return errors.New("order_id required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path(kind), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s ledger: %w", kind, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append %s ledger: %w", kind, err)
	}
	return f.Sync()
}

// Load returns the full ordered sequence of records for a kind. A missing
// file is an empty ledger, not an error. Lines that fail to parse are
// skipped so one torn write cannot poison the whole log.
func (l *Ledger) Load(kind Kind) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, err
	}
	defer f.Close()

	records := make([]Record, 0, 64)
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.OrderID == "" {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// OrderIDs returns the set of order ids present in a ledger, for dedup checks.
func (l *Ledger) OrderIDs(kind Kind) (map[string]struct{}, error) {
	records, err := l.Load(kind)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(records))
	for _, rec := range records {
		ids[rec.OrderID] = struct{}{}
	}
	return ids, nil
}

// Has reports whether an order id has already been recorded in a ledger.
func (l *Ledger) Has(kind Kind, orderID string) (bool, error) {
	ids, err := l.OrderIDs(kind)
	if err != nil {
		return false, err
	}
	_, ok := ids[orderID]
	return ok, nil
}

func (l *Ledger) path(kind Kind) string {
	return filepath.Join(l.root, string(kind)+".jsonl")
}
