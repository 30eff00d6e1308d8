package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

// Bornes de la traversée à deux sauts. Elles ne passent pas par NewPagination :
// la frontière dépasse volontairement MaxPageLimit.
const (
	suggestionFrontierCap = 1000 // followees de l'utilisateur (F1)
	suggestionFanoutCap   = 100  // followees lus par membre de F1
)

// GetFollowSuggestions parcourt le graphe à deux sauts (BFS bornée).
// L'ordre de découverte est conservé : F1 dans l'ordre du store (plus récent d'abord),
// puis les followees de chaque membre dans le même ordre.
func (s *FollowService) GetFollowSuggestions(ctx context.Context, userID string, limit int) domain.Result[[]string] {
	userID = normalizeID(userID)
	if userID == "" {
		return reject(s, opSuggestions, []string{}, domain.ErrEmptyUserID)
	}
	if limit <= 0 {
		return domain.Ok([]string{}, "follow suggestions retrieved")
	}

	reads := 0
	defer func() { s.metrics.ObserveSuggestionReads(reads) }()

	frontier, _, err := s.store.ScanByFollower(ctx, userID, domain.Pagination{Page: 1, Limit: suggestionFrontierCap})
	reads++
	if err != nil {
		return degradedRead(s, opSuggestions, []string{}, "failed to retrieve follow suggestions", err)
	}

	acc := newSuggestionSet(userID, frontier, limit)

	var travErr error
	if s.opts.SuggestionWorkers > 1 {
		reads, travErr = s.expandParallel(ctx, frontier, acc, reads)
	} else {
		reads, travErr = s.expandSequential(ctx, frontier, acc, reads)
	}
	if travErr != nil {
		// On garde ce qui a déjà été collecté
		return degradedRead(s, opSuggestions, acc.list, "follow suggestions are partial", travErr)
	}
	return domain.Ok(acc.list, "follow suggestions retrieved")
}

func (s *FollowService) expandSequential(ctx context.Context, frontier []string, acc *suggestionSet, reads int) (int, error) {
	for _, member := range frontier {
		candidates, _, err := s.store.ScanByFollower(ctx, member, domain.Pagination{Page: 1, Limit: suggestionFanoutCap})
		reads++
		if err != nil {
			return reads, err
		}
		if acc.add(candidates) {
			break
		}
	}
	return reads, nil
}

// expandParallel lit F1 par lots de SuggestionWorkers membres.
// Les résultats d'un lot sont fusionnés dans l'ordre de F1, donc la règle d'arrêt
// donne exactement le même résultat que la version séquentielle.
func (s *FollowService) expandParallel(ctx context.Context, frontier []string, acc *suggestionSet, reads int) (int, error) {
	workers := s.opts.SuggestionWorkers

	for start := 0; start < len(frontier); start += workers {
		chunk := frontier[start:min(start+workers, len(frontier))]
		results := make([][]string, len(chunk))
		errs := make([]error, len(chunk))

		var g errgroup.Group
		g.SetLimit(workers)
		for i, member := range chunk {
			g.Go(func() error {
				results[i], _, errs[i] = s.store.ScanByFollower(ctx, member, domain.Pagination{Page: 1, Limit: suggestionFanoutCap})
				return nil
			})
		}
		_ = g.Wait()
		reads += len(chunk)

		for i := range chunk {
			if errs[i] != nil {
				return reads, errs[i]
			}
			if acc.add(results[i]) {
				return reads, nil
			}
		}
	}
	return reads, nil
}

// suggestionSet garde l'ordre d'insertion et le visited-set S = F1 ∪ {user}.
type suggestionSet struct {
	seen  map[string]struct{}
	list  []string
	limit int
}

func newSuggestionSet(userID string, frontier []string, limit int) *suggestionSet {
	seen := make(map[string]struct{}, len(frontier)+1)
	seen[userID] = struct{}{}
	for _, id := range frontier {
		seen[id] = struct{}{}
	}
	return &suggestionSet{seen: seen, list: make([]string, 0, limit), limit: limit}
}

// add renvoie true quand la limite est atteinte.
func (a *suggestionSet) add(candidates []string) bool {
	for _, c := range candidates {
		if _, ok := a.seen[c]; ok {
			continue
		}
		a.seen[c] = struct{}{}
		a.list = append(a.list, c)
		if len(a.list) >= a.limit {
			return true
		}
	}
	return len(a.list) >= a.limit
}
