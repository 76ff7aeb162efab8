package synccache

import "github.com/clipforge/vidsync/pkg/task"

// mergePrepend inserts rec at the front of records, deduplicating by id.
// If a record with the same id already exists it is dropped in favor of rec
// (last writer wins), and the relative order of all other records is
// preserved. The input slice is never mutated.
func mergePrepend(records []task.Record, rec task.Record) []task.Record {
	out := make([]task.Record, 0, len(records)+1)
	out = append(out, rec)
	for i := range records {
		if records[i].ID == rec.ID {
			continue
		}
		out = append(out, records[i])
	}
	return out
}

// removeByID returns records without the record carrying id, preserving
// order. The input slice is never mutated; if id is absent the original
// slice is returned unchanged.
func removeByID(records []task.Record, id string) []task.Record {
	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return records
	}
	out := make([]task.Record, 0, len(records)-1)
	out = append(out, records[:idx]...)
	out = append(out, records[idx+1:]...)
	return out
}
