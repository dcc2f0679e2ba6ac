package reconciler

import (
	"context"
	stderrors "errors"

	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/logging"
	"github.com/agentstation/keysync/pkg/normalize"
	"github.com/agentstation/keysync/pkg/sources"
)

// extraction holds the raw records of every available system.
type extraction struct {
	records     map[sources.ID][]sources.Record
	rowErrors   map[sources.ID][]error
	unavailable map[sources.ID]error
}

// drained is what one source produced before it was closed.
type drained struct {
	records []sources.Record
	rows    []error
	err     error
}

// extractAll extracts every system in order. A peer that fails or times out
// is marked unavailable; the authority failing ends the run.
func (r *reconciler) extractAll(ctx context.Context, rc *runContext) (*extraction, error) {
	ex := &extraction{
		records:     make(map[sources.ID][]sources.Record),
		rowErrors:   make(map[sources.ID][]error),
		unavailable: make(map[sources.ID]error),
	}

	for _, id := range sources.IDs() {
		src, ok := r.sources.Get(id)
		if !ok {
			ex.unavailable[id] = errors.NewSystemUnavailableError(id.String(), errors.New("not configured"))
			continue
		}

		records, rows, err := r.extractOne(ctx, src)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			ex.unavailable[id] = err
			rc.logger.Warn().
				Str("system", id.String()).
				Err(err).
				Msg("System unavailable")
			continue
		}

		ex.records[id] = records
		ex.rowErrors[id] = rows
		rc.logger.Debug().
			Str("system", id.String()).
			Int("records", len(records)).
			Int("corrupt_rows", len(rows)).
			Msg("Extracted system")
	}

	if err, ok := ex.unavailable[sources.Authority]; ok {
		return nil, err
	}
	return ex, nil
}

// extractOne drains one source within the extraction timeout. A source that
// ignores its context is abandoned when the timeout fires.
func (r *reconciler) extractOne(ctx context.Context, src sources.Source) ([]sources.Record, []error, error) {
	id := src.ID()
	ectx, cancel := context.WithTimeout(ctx, r.cfg.ExtractTimeout)
	defer cancel()

	done := make(chan drained, 1)
	go func() {
		done <- drain(ectx, src)
	}()

	var d drained
	select {
	case d = <-done:
	case <-ectx.Done():
		d.err = ectx.Err()
	}

	if d.err == nil {
		return d.records, d.rows, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if stderrors.Is(d.err, context.DeadlineExceeded) {
		return nil, nil, errors.NewSystemUnavailableError(id.String(),
			errors.NewTimeoutError("extract "+id.String(), r.cfg.ExtractTimeout.String(), "deadline exceeded"))
	}
	if errors.IsSystemUnavailable(d.err) {
		return nil, nil, d.err
	}
	return nil, nil, errors.NewSystemUnavailableError(id.String(), d.err)
}

func drain(ctx context.Context, src sources.Source) drained {
	id := src.ID()
	stream, err := src.Records(ctx)
	if err != nil {
		return drained{err: err}
	}

	var d drained
	for rec, err := range stream {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return drained{err: ctxErr}
		}
		if err != nil {
			if !errors.IsRowCorrupted(err) {
				err = errors.NewRowCorruptionError(id.String(), 0, err)
			}
			d.rows = append(d.rows, err)
			continue
		}
		rec.System = id
		d.records = append(d.records, rec)
	}
	return d
}

// normalizeAll builds the comparison input. Records whose key cannot be
// normalized are counted as corrupt rows of their system.
func (r *reconciler) normalizeAll(ctx context.Context, rc *runContext, ex *extraction) (compare.Input, error) {
	in := compare.Input{
		Peers:       make(map[sources.ID][]normalize.Key),
		Unavailable: make(map[sources.ID]string),
		Skipped:     make(map[sources.ID]int),
	}

	for _, id := range sources.IDs() {
		if err, ok := ex.unavailable[id]; ok {
			in.Unavailable[id] = reason(err)
			continue
		}

		records := ex.records[id]
		keys := make([]normalize.Key, 0, len(records))
		for _, rec := range records {
			k, err := r.normalizer.Key(rec)
			if err != nil {
				ex.rowErrors[id] = append(ex.rowErrors[id], errors.NewRowCorruptionError(id.String(), rec.Line, err))
				continue
			}
			keys = append(keys, k)
		}
		if err := ctx.Err(); err != nil {
			return compare.Input{}, err
		}

		if n := len(ex.rowErrors[id]); n > 0 {
			in.Skipped[id] = n
			logging.FromContext(logging.WithSystem(ctx, id.String())).Debug().
				Int("skipped", n).
				Msg("Skipped corrupt rows")
		}
		if id.IsAuthority() {
			in.Authority = keys
		} else {
			in.Peers[id] = keys
		}
	}

	rc.logger.Info().
		Int("authority_keys", len(in.Authority)).
		Int("peers", len(in.Peers)).
		Int("unavailable", len(in.Unavailable)).
		Msg("Normalized keys")
	return in, nil
}

// reason returns the cause of an unavailable system without the
// "system X unavailable" prefix.
func reason(err error) string {
	var su *errors.SystemUnavailableError
	if stderrors.As(err, &su) && su.Reason != "" {
		return su.Reason
	}
	return err.Error()
}
