package metrics

import "sort"

// StatusBucket counts non-2xx outcomes for one operation/status pair.
type StatusBucket struct {
	Operation string `json:"operation" yaml:"operation"`
	Status    string `json:"status" yaml:"status"`
	Count     int    `json:"count" yaml:"count"`
}

// FlattenStatusBuckets converts a nested operation->status map into a sorted slice of StatusBucket rows.
// Rows are sorted by descending count, then by operation/status for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for operation, statuses := range buckets {
		for status, count := range statuses {
			rows = append(rows, StatusBucket{Operation: operation, Status: status, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Operation == rows[j].Operation {
				return rows[i].Status < rows[j].Status
			}
			return rows[i].Operation < rows[j].Operation
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
