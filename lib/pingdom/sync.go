package pingdom

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"tap-pingdom/lib/emit"
	"tap-pingdom/lib/pagination"
	"tap-pingdom/lib/statestore"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("pingdom")

type SyncOptions struct {
	Client  *resty.Client
	Config  Config
	Emitter emit.Emitter
	// State is optional; without it the sync cannot resume and starts
	// over from start_date.
	State   *statestore.Store
	Streams []*Stream
}

// Sync extracts every requested stream in order. Each stream is driven
// by its own paginator; child streams are synced once per parent record.
// After a top-level stream (and its children) completes, bookmarks are
// persisted and a STATE message is emitted.
func Sync(ctx context.Context, opts SyncOptions) error {
	if opts.Streams == nil {
		opts.Streams = Roots(false)
	}

	run := &syncRun{
		opts:          opts,
		emittedSchema: map[string]bool{},
		bookmarks:     map[bookmarkKey]bookmark{},
	}
	for _, s := range opts.Streams {
		if s.Parent != "" {
			return fmt.Errorf("stream %s is a child of %s and cannot be synced directly", s.Name, s.Parent)
		}
		if err := run.stream(ctx, s, nil); err != nil {
			return err
		}
		if err := run.checkpoint(ctx); err != nil {
			return err
		}
	}
	return nil
}

type bookmark struct {
	key   string
	value int64
}

// bookmarkKey identifies one bookmark cursor. Child streams advance one
// cursor per parent-record partition so one check's result history never
// filters another's; top-level streams use the empty partition.
type bookmarkKey struct {
	stream    string
	partition string
}

type syncRun struct {
	opts          SyncOptions
	emittedSchema map[string]bool
	bookmarks     map[bookmarkKey]bookmark
}

func (r *syncRun) stream(ctx context.Context, s *Stream, parentCtx map[string]any) error {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("sync:%s", s.Name))
	defer span.End()

	if !r.emittedSchema[s.Name] {
		schema, err := s.Schema()
		if err != nil {
			span.SetStatus(codes.Error, "failed to resolve schema")
			return fmt.Errorf("stream %s: resolve schema: %w", s.Name, err)
		}
		var bookmarkProps []string
		if s.ReplicationKey != "" {
			bookmarkProps = []string{s.ReplicationKey}
		}
		if err := r.opts.Emitter.Schema(s.Name, schema, s.PrimaryKeys, bookmarkProps); err != nil {
			return err
		}
		r.emittedSchema[s.Name] = true
	}

	partition := partitionKey(parentCtx)
	from, err := r.fromTimestamp(ctx, s, partition)
	if err != nil {
		return err
	}

	paginator := pagination.NewOffsetPaginator(0, s.PageSize, s.RecordPath)
	for !paginator.Finished() {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := r.opts.Client.R().SetContext(ctx)
		if s.Query != nil {
			req.SetQueryParams(s.Query(r.opts.Config))
		}
		if offset := paginator.Current(); offset > 0 {
			req.SetQueryParam("offset", strconv.Itoa(offset))
		}
		if from > 0 {
			req.SetQueryParam("from", strconv.FormatInt(from, 10))
		}
		for k, v := range pathParams(parentCtx) {
			req.SetPathParam(k, v)
		}

		res, err := req.Get(s.Path)
		if err != nil {
			span.SetStatus(codes.Error, "request failed")
			return fmt.Errorf("stream %s: %w", s.Name, err)
		}
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
			return fmt.Errorf("stream %s: pingdom returned %s", s.Name, res.Status())
		}

		body := res.Body()
		for _, match := range gjson.GetBytes(body, s.RecordPath).Array() {
			record, ok := match.Value().(map[string]any)
			if !ok {
				slog.Warn("skipping non-object record", "stream", s.Name)
				continue
			}
			if s.PostProcess != nil {
				record = s.PostProcess(record, parentCtx)
				if record == nil {
					continue
				}
			}
			r.trackBookmark(s, partition, record)
			if err := r.opts.Emitter.Record(s.Name, record); err != nil {
				return err
			}
			if s.ChildContext != nil {
				childCtx := s.ChildContext(record)
				for _, child := range s.Children {
					if err := r.stream(ctx, child, childCtx); err != nil {
						return err
					}
				}
			}
		}

		if err := paginator.Advance(body); err != nil {
			span.SetStatus(codes.Error, "malformed page")
			return fmt.Errorf("stream %s: %w", s.Name, err)
		}
		slog.Debug("fetched page",
			"stream", s.Name,
			"records", paginator.LastCount(),
			"next_offset", paginator.Current(),
			"finished", paginator.Finished())
	}

	return nil
}

// fromTimestamp computes the `from` filter for incremental streams: the
// configured start_date, tightened by the stored bookmark for this
// stream and partition when one exists. Zero means the stream is synced
// unfiltered.
func (r *syncRun) fromTimestamp(ctx context.Context, s *Stream, partition string) (int64, error) {
	if s.ReplicationKey == "" {
		return 0, nil
	}
	from, err := r.opts.Config.StartTimestamp()
	if err != nil {
		return 0, err
	}
	if r.opts.State != nil {
		value, ok, err := r.opts.State.Bookmark(ctx, s.Name, partition)
		if err != nil {
			return 0, fmt.Errorf("stream %s: load bookmark: %w", s.Name, err)
		}
		if ok && value > from {
			from = value
		}
	}
	return from, nil
}

func (r *syncRun) trackBookmark(s *Stream, partition string, record map[string]any) {
	if s.ReplicationKey == "" {
		return
	}
	value, ok := record[s.ReplicationKey].(float64)
	if !ok {
		return
	}
	key := bookmarkKey{stream: s.Name, partition: partition}
	if int64(value) > r.bookmarks[key].value {
		r.bookmarks[key] = bookmark{key: s.ReplicationKey, value: int64(value)}
	}
}

// checkpoint persists the bookmarks advanced so far and emits a STATE
// message reflecting them.
func (r *syncRun) checkpoint(ctx context.Context) error {
	if len(r.bookmarks) == 0 {
		return nil
	}
	value := map[string]any{}
	for k, b := range r.bookmarks {
		if r.opts.State != nil {
			if err := r.opts.State.SetBookmark(ctx, k.stream, k.partition, b.key, b.value); err != nil {
				return fmt.Errorf("stream %s: save bookmark: %w", k.stream, err)
			}
		}
		if k.partition == "" {
			value[k.stream] = map[string]any{b.key: b.value}
			continue
		}
		partitions, ok := value[k.stream].(map[string]any)
		if !ok {
			partitions = map[string]any{}
			value[k.stream] = partitions
		}
		partitions[k.partition] = map[string]any{b.key: b.value}
	}
	return r.opts.Emitter.State(map[string]any{"bookmarks": value})
}

// partitionKey renders a parent context as a stable bookmark partition,
// e.g. {"checkid": 1} becomes "checkid=1". Top-level streams have no
// parent context and use the empty partition.
func partitionKey(parentCtx map[string]any) string {
	if len(parentCtx) == 0 {
		return ""
	}
	params := pathParams(parentCtx)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, ",")
}

func pathParams(parentCtx map[string]any) map[string]string {
	params := make(map[string]string, len(parentCtx))
	for k, v := range parentCtx {
		switch v := v.(type) {
		case float64:
			params[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			params[k] = strconv.Itoa(v)
		case int64:
			params[k] = strconv.FormatInt(v, 10)
		default:
			params[k] = fmt.Sprintf("%v", v)
		}
	}
	return params
}
