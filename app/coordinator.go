package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lmichel/tonectl/core/catalog"
	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/infra/cloud"
)

// RefreshEvent is published on the bus when the raw planning state of at
// least one candidate entity changed since the previous refresh.
type RefreshEvent struct {
	Entities []string
	Time     time.Time
}

func (s *Service) refreshLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Planning.RefreshIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.log.Errorf("refresh: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// refresh pulls the latest product state, recomputes the candidate set and
// notifies observers. The notification is gated by an equality check limited
// to the candidates' raw planning values, so an unchanged poll stays silent.
func (s *Service) refresh(ctx context.Context) error {
	product, err := s.client.FetchData(ctx)
	if err != nil {
		return err
	}

	live := liveEntities(product)
	candidates := s.resolveCandidates(live)

	s.mu.Lock()
	prev := s.product
	s.product = product
	s.candidates = candidates
	s.mu.Unlock()

	changed := changedEntities(prev, product, candidates)
	if len(changed) > 0 {
		s.log.Debugf("planning changed for %d entities", len(changed))
		s.bus.Publish(RefreshEvent{Entities: changed, Time: time.Now()})
	}
	return nil
}

// resolveCandidates maps the configured identifiers onto the live set, or
// discovers planning entities when nothing is configured. Unresolved
// identifiers are filtered out; an empty result is a valid empty state.
func (s *Service) resolveCandidates(live []string) []string {
	configured := s.cfg.Planning.Entities
	if len(configured) == 0 {
		return catalog.Discover(live)
	}
	var out []string
	for _, c := range configured {
		resolved := catalog.Resolve(c, live)
		for _, l := range live {
			if l == resolved {
				out = append(out, resolved)
				break
			}
		}
	}
	return out
}

// liveEntities derives the canonical planning entity identifiers exposed by
// the product. Only AquaAir units expose week planning; they carry all four
// program slots. Other references have no planning entities at all.
func liveEntities(p *cloud.Product) []string {
	if p.Reference != "TONE_AQUA_AIR" {
		return nil
	}
	serial := strings.ToLower(p.SerialNumber)
	if serial == "" {
		serial = strings.ToLower(p.Modem)
	}
	suffixes := []string{"heating_prog_a", "heating_prog_b", "cooling_prog_c", "cooling_prog_d"}
	ids := make([]string, 0, len(suffixes))
	for _, sfx := range suffixes {
		ids = append(ids, fmt.Sprintf("%s.aldes_%s_planning_%s", catalog.CanonicalDomain, serial, sfx))
	}
	return ids
}

// changedEntities compares the raw planning values of each candidate between
// two product snapshots. The comparison covers only the candidates, so
// unrelated product churn does not wake observers.
func changedEntities(prev, next *cloud.Product, candidates []string) []string {
	var changed []string
	for _, id := range candidates {
		eid, ok := catalog.ParseEntityID(id)
		if !ok {
			continue
		}
		var before []schedule.Entry
		if prev != nil {
			before = prev.Planning(eid.Program)
		}
		after := next.Planning(eid.Program)
		if prev == nil || !equalPlanning(before, after) {
			changed = append(changed, id)
		}
	}
	return changed
}

func equalPlanning(a, b []schedule.Entry) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}
