package deps

import (
	"context"
	stderrors "errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/logging"
)

// DefaultTimeout bounds a single getDependencies round trip.
const DefaultTimeout = 30 * time.Second

// Collector owns the dependency set of one build and the link to its
// analysis worker.
type Collector struct {
	set     *DependencySet
	conn    Conn
	timeout time.Duration
	logger  logging.Logger

	mu     sync.Mutex
	nextID uint64
	memo   map[string][]DependencyRecord
}

// NewCollector returns a collector asking conn for import closures. conn may
// be nil when no closure is ever requested for a non-empty seed set.
func NewCollector(conn Conn, timeout time.Duration, logger logging.Logger) *Collector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Collector{
		set:     NewDependencySet(),
		conn:    conn,
		timeout: timeout,
		logger:  logger.WithComponent("collector"),
		memo:    make(map[string][]DependencyRecord),
	}
}

// Set returns the build's dependency set.
func (c *Collector) Set() *DependencySet {
	return c.set
}

// Gather drains reports from ep into the set until the reporting side
// closes. Any other receive failure is returned: a dropped report would mean
// an incomplete bundle.
func (c *Collector) Gather(ctx context.Context, ep channel.Endpoint[DependencyRecord]) error {
	for {
		rec, err := ep.Receive(ctx)
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if c.set.Add(rec) {
			c.logger.Debug(ctx, "client module reported", "url", rec.URL)
		}
	}
}

// GetDependencies returns the transitive static imports of files, excluding
// the files themselves, sorted by URL. The answer for a given seed set is
// computed once per collector.
func (c *Collector) GetDependencies(ctx context.Context, files []string) ([]DependencyRecord, error) {
	key := seedKey(files)
	if key == "" {
		return []DependencyRecord{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.memo[key]; ok {
		return slices.Clone(cached), nil
	}
	if c.conn == nil {
		return nil, errors.NewAnalysisError("NO_ANALYZER", "no analysis worker is connected", nil)
	}

	c.nextID++
	id := c.nextID

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	perf := logging.StartOperation(c.logger, "getDependencies")

	req := Message{Method: MethodGetDependencies, ID: id, Files: strings.Split(key, "\n")}
	if err := c.conn.Send(rpcCtx, req); err != nil {
		err = c.rpcError(ctx, rpcCtx, err)
		perf.EndWithError(ctx, err)
		return nil, err
	}

	resp, err := c.conn.Receive(rpcCtx)
	if err != nil {
		err = c.rpcError(ctx, rpcCtx, err)
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if resp.ID != id {
		err := errors.NewAnalysisError("BAD_RESPONSE", "response does not match the request", nil).
			WithContext("want_id", id).WithContext("got_id", resp.ID)
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if resp.Error != "" {
		err := errors.NewAnalysisError("ANALYSIS_FAILED", resp.Error, nil)
		perf.EndWithError(ctx, err)
		return nil, err
	}

	records := resp.Records
	if records == nil {
		records = []DependencyRecord{}
	}
	sortRecords(records)
	c.memo[key] = records
	perf.End(ctx, "seeds", len(req.Files), "records", len(records))

	return slices.Clone(records), nil
}

// Closure asks for the imports of everything gathered so far and merges
// them into the set, returning the full sorted file list.
func (c *Collector) Closure(ctx context.Context) ([]DependencyRecord, error) {
	extra, err := c.GetDependencies(ctx, c.set.URLs())
	if err != nil {
		return nil, err
	}
	c.set.AddAll(extra)
	return c.set.Records(), nil
}

func (c *Collector) rpcError(parent, rpcCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case rpcCtx.Err() != nil:
		return errors.NewAnalysisError("TIMEOUT", "analysis worker did not answer in "+c.timeout.String(), err)
	case stderrors.Is(err, io.EOF):
		return errors.NewAnalysisError("WORKER_EXITED", "analysis worker exited", err)
	default:
		return errors.NewAnalysisError("WORKER_FAILED", "analysis worker link failed", err)
	}
}

// seedKey canonicalises a seed set.
func seedKey(files []string) string {
	uniq := slices.Clone(files)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)
	if len(uniq) > 0 && uniq[0] == "" {
		uniq = uniq[1:]
	}
	return strings.Join(uniq, "\n")
}
