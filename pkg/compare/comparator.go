package compare

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/logging"
	"github.com/agentstation/keysync/pkg/normalize"
	"github.com/agentstation/keysync/pkg/sources"
)

// ctxCheckInterval is how many records a peer pass walks between
// cancellation checks.
const ctxCheckInterval = 4096

// Input holds the normalized keys of one extraction. It always covers
// the whole current extract of each system, in both modes.
//
// Every peer should appear in exactly one of Peers or Unavailable. A peer
// present in neither is reported as unavailable because it is not
// configured. A peer in Peers with no keys is available but empty.
type Input struct {
	Authority   []normalize.Key
	Peers       map[sources.ID][]normalize.Key
	Unavailable map[sources.ID]string
	Skipped     map[sources.ID]int
}

// Comparator classifies peer keys against the authority.
type Comparator struct {
	opts *options
}

// New creates a Comparator.
func New(opts ...Option) (*Comparator, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	return &Comparator{opts: o}, nil
}

// authority is the System A key set of the current extract, shared
// read-only by the peer passes.
type authority struct {
	set     map[string]struct{}
	keys    []string // sorted
	added   []string // sorted, keys not in the base snapshot
	removed []string // sorted, base snapshot keys gone from the extract
}

func (a *authority) has(key string) bool {
	_, ok := a.set[key]
	return ok
}

type peerJob struct {
	system sources.ID
	keys   []normalize.Key
	prev   *PeerSnapshot
}

type peerResult struct {
	system sources.ID
	state  PeerSnapshot
	set    map[string]struct{}
	fresh  []Discrepancy
}

// Compare classifies in. With prev == nil every peer key is checked against
// every authority key. Otherwise each system's key set is diffed against
// prev and only the keys that entered or left a system are classified; the
// discrepancies of keys present in both are carried over from prev. Either
// way the result lists the same discrepancies a full comparison of in
// would. Result.New lists the discrepancies that were not in prev.
func (c *Comparator) Compare(ctx context.Context, prev *Snapshot, in Input) (*Result, error) {
	if reason, ok := in.Unavailable[sources.Authority]; ok {
		return nil, &errors.SystemUnavailableError{System: sources.Authority.String(), Reason: reason}
	}
	if prev != nil && prev.Version != SnapshotVersion {
		return nil, &errors.ValidationError{
			Field:   "snapshot.version",
			Value:   prev.Version,
			Message: "unsupported snapshot version",
		}
	}

	logger := logging.FromContext(ctx)
	now := c.opts.now()
	auth := buildAuthority(prev, in.Authority)

	jobs := make([]peerJob, 0, len(sources.Peers()))
	carried := make(map[sources.ID]PeerSnapshot)
	unavailable := make(map[sources.ID]string)
	for _, id := range sources.Peers() {
		keys, ok := in.Peers[id]
		reason, down := in.Unavailable[id]
		switch {
		case down:
			unavailable[id] = reason
		case !ok:
			unavailable[id] = "not configured"
		default:
			jobs = append(jobs, peerJob{system: id, keys: keys, prev: prev.Peer(id)})
			continue
		}
		if p := prev.Peer(id); p != nil {
			state := *p
			state.Available = false
			carried[id] = state
		} else {
			carried[id] = PeerSnapshot{}
		}
	}

	p := pool.NewWithResults[peerResult]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(c.opts.concurrency)
	for _, job := range jobs {
		p.Go(func(ctx context.Context) (peerResult, error) {
			return comparePeer(ctx, job, auth, now)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Results arrive in completion order; everything below is keyed by
	// system and sorted, so the merge does not depend on it.
	res := merge(auth, prev, in, results, carried, unavailable)

	logger.Debug().
		Bool("incremental", prev != nil).
		Int("keys_in_a", res.Stats.KeysInA).
		Int("out_of_authority", res.Stats.OutOfAuthority).
		Int("propagation_gaps", res.Stats.PropagationGaps).
		Int("duplicates", res.Stats.Duplicates).
		Int("new", len(res.New)).
		Msg("Comparison finished")

	return res, nil
}

func buildAuthority(prev *Snapshot, keys []normalize.Key) *authority {
	a := &authority{set: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		a.set[k.Value] = struct{}{}
	}
	a.keys = sortedKeys(a.set)
	if prev == nil {
		return a
	}

	before := make(map[string]struct{}, len(prev.Authority))
	for _, k := range prev.Authority {
		before[k] = struct{}{}
		if !a.has(k) {
			a.removed = append(a.removed, k)
		}
	}
	for _, k := range a.keys {
		if _, ok := before[k]; !ok {
			a.added = append(a.added, k)
		}
	}
	slices.Sort(a.removed)
	return a
}

func observedAt(k normalize.Key, now time.Time) time.Time {
	if k.SeenAt.IsZero() {
		return now
	}
	return k.SeenAt
}

// comparePeer walks the records of one peer. It reads only auth and its own
// job, so passes for different peers can run in parallel.
func comparePeer(ctx context.Context, job peerJob, auth *authority, now time.Time) (peerResult, error) {
	seen := make(map[string]time.Time, len(job.keys))
	dups := make(map[string]time.Time)
	for i, key := range job.keys {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return peerResult{}, err
			}
		}
		if _, ok := seen[key.Value]; ok {
			if _, ok := dups[key.Value]; !ok {
				dups[key.Value] = observedAt(key, now)
			}
			continue
		}
		seen[key.Value] = observedAt(key, now)
	}

	// A peer that was compared last time is diffed against its snapshot;
	// one that was not, or is new, is classified from scratch.
	var ooa, gaps map[string]time.Time
	if prev := job.prev; prev != nil && prev.Available {
		ooa, gaps = applyDelta(prev, seen, auth, now)
	} else {
		ooa, gaps = classify(seen, auth, now)
	}
	set := make(map[string]struct{}, len(seen))
	for k := range seen {
		set[k] = struct{}{}
	}

	res := peerResult{
		system: job.system,
		set:    set,
		state: PeerSnapshot{
			Available:      true,
			Records:        len(job.keys),
			Keys:           sortedKeys(set),
			OutOfAuthority: ooa,
			Gaps:           gaps,
			Duplicates:     dups,
		},
	}

	var before PeerSnapshot
	if job.prev != nil {
		before = *job.prev
	}
	res.fresh = appendFresh(res.fresh, OutOfAuthority, job.system, ooa, before.OutOfAuthority)
	res.fresh = appendFresh(res.fresh, PropagationGap, job.system, gaps, before.Gaps)
	res.fresh = appendFresh(res.fresh, Duplicate, job.system, dups, before.Duplicates)
	return res, nil
}

// classify checks every key of the peer against the authority and every
// authority key against the peer.
func classify(seen map[string]time.Time, auth *authority, now time.Time) (ooa, gaps map[string]time.Time) {
	ooa = make(map[string]time.Time)
	gaps = make(map[string]time.Time)
	for k, t := range seen {
		if !auth.has(k) {
			ooa[k] = t
		}
	}
	for _, k := range auth.keys {
		if _, ok := seen[k]; !ok {
			gaps[k] = now
		}
	}
	return ooa, gaps
}

// applyDelta updates the discrepancy sets of prev by the keys that entered
// or left the peer and the authority since prev was written. Carried
// discrepancies keep the time they were first observed.
func applyDelta(prev *PeerSnapshot, seen map[string]time.Time, auth *authority, now time.Time) (ooa, gaps map[string]time.Time) {
	ooa = make(map[string]time.Time, len(prev.OutOfAuthority))
	maps.Copy(ooa, prev.OutOfAuthority)
	gaps = make(map[string]time.Time, len(prev.Gaps))
	maps.Copy(gaps, prev.Gaps)

	before := make(map[string]struct{}, len(prev.Keys))
	for _, k := range prev.Keys {
		before[k] = struct{}{}
		if _, ok := seen[k]; ok {
			continue
		}
		// Left the peer.
		delete(ooa, k)
		if auth.has(k) {
			gaps[k] = now
		}
	}
	for k, t := range seen {
		if _, ok := before[k]; ok {
			continue
		}
		// Entered the peer.
		delete(gaps, k)
		if !auth.has(k) {
			ooa[k] = t
		}
	}

	for _, k := range auth.added {
		delete(ooa, k)
		if _, ok := seen[k]; !ok {
			gaps[k] = now
		}
	}
	for _, k := range auth.removed {
		delete(gaps, k)
		if t, ok := seen[k]; ok {
			ooa[k] = t
		}
	}
	return ooa, gaps
}

func appendFresh(out []Discrepancy, kind Kind, system sources.ID, cur, prev map[string]time.Time) []Discrepancy {
	for _, key := range slices.Sorted(maps.Keys(cur)) {
		if _, ok := prev[key]; ok {
			continue
		}
		out = append(out, Discrepancy{Kind: kind, System: system, Key: key, ObservedAt: cur[key]})
	}
	return out
}

func merge(auth *authority, prev *Snapshot, in Input, results []peerResult,
	carried map[sources.ID]PeerSnapshot, unavailable map[sources.ID]string) *Result {
	res := &Result{
		Incremental: prev != nil,
		Systems:     make(map[sources.ID]SystemStats, len(sources.IDs())),
	}

	authRecords := len(in.Authority)
	res.snapshot = &Snapshot{
		Version:          SnapshotVersion,
		AuthorityRecords: authRecords,
		Authority:        auth.keys,
		Peers:            make(map[sources.ID]PeerSnapshot, len(sources.Peers())),
	}
	res.Systems[sources.Authority] = SystemStats{
		System:      sources.Authority,
		Status:      statusOf(authRecords),
		Records:     authRecords,
		UniqueKeys:  len(auth.keys),
		SkippedRows: in.Skipped[sources.Authority],
	}

	slices.SortFunc(results, func(a, b peerResult) int {
		return cmp.Compare(a.system, b.system)
	})

	union := maps.Clone(auth.set)
	inAll := maps.Clone(auth.set)
	inAny := make(map[string]struct{})
	for _, r := range results {
		res.snapshot.Peers[r.system] = r.state
		res.OutOfAuthority = appendSet(res.OutOfAuthority, OutOfAuthority, r.system, r.state.OutOfAuthority)
		res.PropagationGaps = appendSet(res.PropagationGaps, PropagationGap, r.system, r.state.Gaps)
		res.Duplicates = appendSet(res.Duplicates, Duplicate, r.system, r.state.Duplicates)
		res.New = append(res.New, r.fresh...)

		res.Systems[r.system] = SystemStats{
			System:          r.system,
			Status:          statusOf(r.state.Records),
			Records:         r.state.Records,
			UniqueKeys:      len(r.set),
			OutOfAuthority:  len(r.state.OutOfAuthority),
			PropagationGaps: len(r.state.Gaps),
			Duplicates:      len(r.state.Duplicates),
			SkippedRows:     in.Skipped[r.system],
		}

		for k := range r.set {
			union[k] = struct{}{}
			if auth.has(k) {
				inAny[k] = struct{}{}
			}
		}
		for k := range inAll {
			if _, ok := r.set[k]; !ok {
				delete(inAll, k)
			}
		}
	}

	for id, state := range carried {
		res.snapshot.Peers[id] = state
		res.Systems[id] = SystemStats{
			System:      id,
			Status:      StatusUnavailable,
			Reason:      unavailable[id],
			SkippedRows: in.Skipped[id],
		}
		res.Stats.Unavailable = append(res.Stats.Unavailable, id)
	}
	slices.Sort(res.Stats.Unavailable)

	Sort(res.OutOfAuthority)
	Sort(res.PropagationGaps)
	Sort(res.Duplicates)
	Sort(res.New)

	res.Stats.KeysInA = len(auth.keys)
	res.Stats.KeysOnlyInA = len(auth.keys) - len(inAny)
	res.Stats.TotalUniqueKeys = len(union)
	res.Stats.KeysInAllSystems = len(inAll)
	if len(union) > 0 {
		res.Stats.MatchPercentage = float64(len(inAll)) / float64(len(union)) * 100
	}
	res.Stats.OutOfAuthority = len(res.OutOfAuthority)
	res.Stats.PropagationGaps = len(res.PropagationGaps)
	res.Stats.Duplicates = len(res.Duplicates)
	for _, n := range in.Skipped {
		res.Stats.SkippedRows += n
	}
	return res
}

func statusOf(records int) Status {
	if records == 0 {
		return StatusEmpty
	}
	return StatusAvailable
}
