package scheduler

import (
	"testing"
	"time"
)

func TestBucketForRepoIDStableAndInRange(t *testing.T) {
	ids := []string{"repo-123", "", "azure-devops|org|project/repo-one", "r2"}
	for _, id := range ids {
		a := BucketForRepoID(id)
		b := BucketForRepoID(id)
		if a != b {
			t.Fatalf("bucket not stable for %q: %d vs %d", id, a, b)
		}
		if a < 0 || a >= bucketCount {
			t.Fatalf("bucket out of range for %q: %d", id, a)
		}
	}
}

func TestBucketForTimestampStable(t *testing.T) {
	a := BucketForTimestamp(0)
	b := BucketForTimestamp(0)
	if a != b || a < 0 || a >= bucketCount {
		t.Fatalf("unexpected bucket: %d", a)
	}
	// One day later must advance by exactly one bucket (mod 7).
	if got, want := BucketForTimestamp(86400), (a+1)%bucketCount; got != want {
		t.Fatalf("bucket did not advance across day boundary: got %d want %d", got, want)
	}
}

func TestCurrentDayBucketZeroClock(t *testing.T) {
	got := CurrentDayBucket(func() time.Time { return time.Time{} })
	if got != 0 {
		t.Fatalf("expected bucket 0 on clock failure, got %d", got)
	}
}
