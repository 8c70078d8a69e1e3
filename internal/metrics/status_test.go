package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenStatusBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]map[string]int
		want    []StatusBucket
	}{
		{
			name:    "nil buckets",
			buckets: nil,
			want:    nil,
		},
		{
			name:    "empty buckets",
			buckets: map[string]map[string]int{},
			want:    nil,
		},
		{
			name: "single bucket",
			buckets: map[string]map[string]int{
				"create_user": {"409": 10},
			},
			want: []StatusBucket{
				{Operation: "create_user", Status: "409", Count: 10},
			},
		},
		{
			name: "multiple buckets sorted by count desc",
			buckets: map[string]map[string]int{
				"create_user": {
					"409": 10,
					"500": 5,
				},
				"create_order": {
					"SKIPPED": 20,
				},
			},
			want: []StatusBucket{
				{Operation: "create_order", Status: "SKIPPED", Count: 20},
				{Operation: "create_user", Status: "409", Count: 10},
				{Operation: "create_user", Status: "500", Count: 5},
			},
		},
		{
			name: "tie breaking by operation then status",
			buckets: map[string]map[string]int{
				"create_user": {
					"409": 10,
					"404": 10,
				},
				"create_order": {
					"SKIPPED": 10,
				},
			},
			want: []StatusBucket{
				{Operation: "create_order", Status: "SKIPPED", Count: 10},
				{Operation: "create_user", Status: "404", Count: 10},
				{Operation: "create_user", Status: "409", Count: 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenStatusBuckets(tt.buckets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenStatusBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}
