// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract identifies KPIs, dates, and organizations in report text
// by sending it to a language model backend and validating the reply.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/pkg/types"
)

const (
	// DefaultChunkSize is the maximum number of characters per request.
	DefaultChunkSize = 12000

	// DefaultMaxRetries is the number of retries after a failed request.
	DefaultMaxRetries = 3

	chunkSeparator = "\n\n"
)

// Backend abstracts the language model so tests can supply a mock. Each
// implementation handles one chunk of report text.
type Backend interface {
	Extract(ctx context.Context, chunk string) (Response, error)
}

// Option configures ExtractEntities.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used for dropped items and retries.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// ExtractEntities returns the entities found in text. Blank text returns
// empty lists without calling the backend. Longer text is split into
// chunks at blank lines; results of all chunks are merged and
// de-duplicated.
func ExtractEntities(ctx context.Context, backend Backend, text string, cfg types.ExtractionConfig, opts ...Option) (types.Entities, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(text) == "" {
		return types.Entities{}.Normalize(), nil
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	maxRetries := DefaultMaxRetries
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		maxRetries = *cfg.MaxRetries
	}

	m := newMerger()
	chunks := chunkText(text, chunkSize)
	for i, chunk := range chunks {
		log := o.log.With(zap.Int("chunk", i+1), zap.Int("chunks", len(chunks)))

		resp, err := callWithRetry(ctx, backend, chunk, maxRetries, log)
		if err != nil {
			return types.Entities{}, fmt.Errorf("extracting chunk %d/%d: %w", i+1, len(chunks), err)
		}

		ents, problems := convertResponse(resp)
		if len(problems) > 0 {
			if cfg.Strict {
				return types.Entities{}, fmt.Errorf("%w: chunk %d/%d: %s",
					ErrInvalidResponse, i+1, len(chunks), strings.Join(problems, "; "))
			}
			for _, p := range problems {
				log.Warn("dropping invalid item", zap.String("reason", p))
			}
		}
		m.add(ents)
	}

	return m.result(), nil
}

// chunkText splits text into pieces of at most size characters. Pieces
// break at blank lines; a single block longer than size is cut. Blank
// blocks are dropped.
func chunkText(text string, size int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
		curLen = 0
	}

	for _, block := range strings.Split(text, chunkSeparator) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		n := utf8.RuneCountInString(block)
		if n > size {
			flush()
			runes := []rune(block)
			for len(runes) > size {
				chunks = append(chunks, string(runes[:size]))
				runes = runes[size:]
			}
			cur.WriteString(string(runes))
			curLen = len(runes)
			continue
		}

		sep := 0
		if curLen > 0 {
			sep = len(chunkSeparator)
		}
		if curLen+sep+n > size {
			flush()
			sep = 0
		}
		if sep > 0 {
			cur.WriteString(chunkSeparator)
		}
		cur.WriteString(block)
		curLen += sep + n
	}
	flush()
	return chunks
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff.
func callWithRetry(ctx context.Context, backend Backend, chunk string, maxRetries int, log *zap.Logger) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			log.Debug("retrying backend call", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Extract(ctx, chunk)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return Response{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// convertResponse validates each raw item and decodes the valid ones.
// Problems describe the rejected items.
func convertResponse(resp Response) (types.Entities, []string) {
	var ents types.Entities
	var problems []string

	for i, raw := range resp.KPIs {
		var k types.KPI
		if err := decodeItem(kindKPI, raw, &k); err != nil {
			problems = append(problems, fmt.Sprintf("kpi %d: %v", i, err))
			continue
		}
		if k.Name = strings.TrimSpace(k.Name); k.Name == "" {
			problems = append(problems, fmt.Sprintf("kpi %d: blank name", i))
			continue
		}
		ents.KPIs = append(ents.KPIs, k)
	}

	for i, raw := range resp.Dates {
		var d types.DateRef
		if err := decodeItem(kindDate, raw, &d); err != nil {
			problems = append(problems, fmt.Sprintf("date %d: %v", i, err))
			continue
		}
		if d.Text = strings.TrimSpace(d.Text); d.Text == "" {
			problems = append(problems, fmt.Sprintf("date %d: blank text", i))
			continue
		}
		d.Type = normalizeDateType(d.Type)
		ents.Dates = append(ents.Dates, d)
	}

	for i, raw := range resp.Organizations {
		var org types.Organization
		if err := decodeItem(kindOrganization, raw, &org); err != nil {
			problems = append(problems, fmt.Sprintf("organization %d: %v", i, err))
			continue
		}
		if org.Name = strings.TrimSpace(org.Name); org.Name == "" {
			problems = append(problems, fmt.Sprintf("organization %d: blank name", i))
			continue
		}
		ents.Organizations = append(ents.Organizations, org)
	}

	return ents, problems
}

func decodeItem(kind entityKind, raw json.RawMessage, dst any) error {
	if err := validateItem(kind, raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func normalizeDateType(t types.DateType) types.DateType {
	switch types.DateType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case types.DateReportingPeriod:
		return types.DateReportingPeriod
	case types.DateDeadline:
		return types.DateDeadline
	case types.DateEvent:
		return types.DateEvent
	case "":
		return ""
	default:
		return types.DateOther
	}
}

// merger accumulates entities across chunks. Records are keyed by their
// case-folded name or text; the higher-confidence record wins and the
// first-seen position is kept.
type merger struct {
	kpis  keyed[types.KPI]
	dates keyed[types.DateRef]
	orgs  keyed[types.Organization]
}

type keyed[T any] struct {
	index map[string]int
	items []T
}

func (k *keyed[T]) put(key string, item T, conf func(T) float64) {
	if k.index == nil {
		k.index = make(map[string]int)
	}
	key = strings.ToLower(strings.Join(strings.Fields(key), " "))
	if i, ok := k.index[key]; ok {
		if conf(item) > conf(k.items[i]) {
			k.items[i] = item
		}
		return
	}
	k.index[key] = len(k.items)
	k.items = append(k.items, item)
}

func newMerger() *merger { return &merger{} }

func (m *merger) add(e types.Entities) {
	for _, k := range e.KPIs {
		m.kpis.put(k.Name, k, func(v types.KPI) float64 { return v.Confidence })
	}
	for _, d := range e.Dates {
		m.dates.put(d.Text, d, func(v types.DateRef) float64 { return v.Confidence })
	}
	for _, o := range e.Organizations {
		m.orgs.put(o.Name, o, func(v types.Organization) float64 { return v.Confidence })
	}
}

func (m *merger) result() types.Entities {
	return types.Entities{
		KPIs:          m.kpis.items,
		Dates:         m.dates.items,
		Organizations: m.orgs.items,
	}.Normalize()
}
