package sync

import "github.com/hyperengineering/gatelog/model"

// MergeResult is the outcome of merging pulled records into a local list.
type MergeResult[T any] struct {
	Items   []T
	Added   int
	Updated int
	// Kept counts incoming records ignored because the local copy has an
	// unconfirmed edit.
	Kept int
	// Skipped counts incoming records ignored because their id is pending
	// deletion.
	Skipped int
}

// Merge applies incoming remote records to local:
//
//   - id pending deletion: skipped
//   - no local record: added, marked synced
//   - local record synced: replaced by the remote copy, marked synced
//   - local record unsynced: local copy kept
//
// local is not modified.
func Merge[T any, P model.Record[T]](local, incoming []T, deleted map[string]bool) MergeResult[T] {
	res := MergeResult[T]{Items: make([]T, len(local))}
	copy(res.Items, local)

	index := make(map[string]int, len(local))
	for i := range res.Items {
		index[P(&res.Items[i]).Base().ID] = i
	}

	var added []T
	addedIndex := make(map[string]int)
	for _, r := range incoming {
		meta := P(&r).Base()
		if meta.ID == "" {
			continue
		}
		if deleted[meta.ID] {
			res.Skipped++
			continue
		}
		meta.Synced = true

		if i, ok := index[meta.ID]; ok {
			if !P(&res.Items[i]).Base().Synced {
				res.Kept++
				continue
			}
			res.Items[i] = r
			res.Updated++
			continue
		}
		if i, ok := addedIndex[meta.ID]; ok {
			added[i] = r
			continue
		}
		addedIndex[meta.ID] = len(added)
		added = append(added, r)
		res.Added++
	}

	if len(added) > 0 {
		res.Items = append(added, res.Items...)
	}
	return res
}
