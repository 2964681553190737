package conversations

import (
	"context"
	"sort"
	"time"

	"github.com/matheus3301/relay/internal/directory"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Peer is the other party of a conversation. Profile fields are empty when
// the directory lookup failed.
type Peer struct {
	ID       string `json:"id"`
	Fullname string `json:"fullname,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Summary is one row of the operator's conversation list.
type Summary struct {
	Peer        Peer          `json:"peer"`
	LastMessage store.Message `json:"lastMessage"`
}

// Options tunes profile enrichment.
type Options struct {
	Workers       int           // concurrent directory lookups
	LookupTimeout time.Duration // per lookup, derived from the request context
}

// Aggregator builds the operator's conversation list from the message log.
type Aggregator struct {
	ids    identity.Normalizer
	store  store.Store
	dir    directory.Directory
	opts   Options
	logger *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(ids identity.Normalizer, s store.Store, dir directory.Directory, opts Options, logger *zap.Logger) *Aggregator {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 3 * time.Second
	}
	return &Aggregator{ids: ids, store: s, dir: dir, opts: opts, logger: logger}
}

// Build returns one summary per peer the operator has exchanged messages
// with, newest conversation first. An empty operatorID means the configured
// operator. Store failures yield an empty list; a failed profile lookup only
// strips that row down to the peer id.
func (a *Aggregator) Build(ctx context.Context, operatorID string) []Summary {
	op := a.ids.Operator()
	if operatorID != "" {
		op = a.ids.Canonical(operatorID)
	}

	msgs, err := a.scan(ctx, op)
	if err != nil {
		a.logger.Error("load conversations", zap.String("operator", op), zap.Error(err))
		return []Summary{}
	}

	rows := latestPerPeer(a.ids, op, msgs)
	a.enrich(ctx, rows)

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastMessage.Timestamp.After(rows[j].LastMessage.Timestamp)
	})
	return rows
}

// scan loads every message the operator took part in. Rows written under a
// legacy alias are included, so the canonical operator scans each alias.
func (a *Aggregator) scan(ctx context.Context, op string) ([]store.Message, error) {
	if op != a.ids.Operator() {
		return a.store.GetByParticipant(ctx, op)
	}
	var all []store.Message
	seen := make(map[string]struct{})
	for _, alias := range a.ids.Aliases() {
		msgs, err := a.store.GetByParticipant(ctx, alias)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			all = append(all, m)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.Before(all[j].Timestamp)
		}
		return all[i].Seq < all[j].Seq
	})
	return all, nil
}

// latestPerPeer keeps, for each distinct peer in first-seen order, the message
// with the greatest timestamp. On equal timestamps the later row wins.
func latestPerPeer(ids identity.Normalizer, op string, msgs []store.Message) []Summary {
	index := make(map[string]int)
	rows := make([]Summary, 0)
	for _, m := range msgs {
		sender, receiver := ids.Canonical(m.SenderID), ids.Canonical(m.ReceiverID)
		var peer string
		switch {
		case sender == op && receiver == op:
			continue
		case sender == op:
			peer = receiver
		default:
			peer = sender
		}

		i, seen := index[peer]
		if !seen {
			index[peer] = len(rows)
			rows = append(rows, Summary{Peer: Peer{ID: peer}, LastMessage: m})
			continue
		}
		if !m.Timestamp.Before(rows[i].LastMessage.Timestamp) {
			rows[i].LastMessage = m
		}
	}
	return rows
}

// enrich fills profile data in place. Each task owns its own index, so the
// slice needs no locking.
func (a *Aggregator) enrich(ctx context.Context, rows []Summary) {
	if a.dir == nil || len(rows) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i := range rows {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, a.opts.LookupTimeout)
			defer cancel()

			id := rows[i].Peer.ID
			p, err := a.dir.Lookup(lctx, id)
			if err != nil {
				a.logger.Warn("profile lookup failed", zap.String("peer", id), zap.Error(err))
				return nil
			}
			rows[i].Peer = Peer{ID: id, Fullname: p.Fullname, Phone: p.Phone, Avatar: p.Avatar}
			return nil
		})
	}
	_ = g.Wait()
}
