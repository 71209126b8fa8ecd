// Package scheduler assigns each repository to one of seven daily buckets
// so that a full mirror set is spread evenly across a week instead of
// hammering every provider on every run.
package scheduler

import (
	"crypto/sha256"
	"encoding/binary"
	"time"
)

const bucketCount = 7

// BucketForRepoID hashes the UTF-8 bytes of id with SHA-256 and reduces the
// first 8 bytes (big-endian) modulo 7. Pure and stable across releases: the
// same id always lands in the same bucket.
func BucketForRepoID(id string) int {
	sum := sha256.Sum256([]byte(id))
	value := binary.BigEndian.Uint64(sum[:8])
	return int(value % bucketCount)
}

// BucketForTimestamp maps seconds-since-epoch to a day bucket.
func BucketForTimestamp(secondsSinceEpoch int64) int {
	day := secondsSinceEpoch / 86400
	return int(((day % bucketCount) + bucketCount) % bucketCount)
}

// CurrentDayBucket reads the wall clock through now. A now that returns the
// zero Time (the only realistic "clock read failure" in Go) yields bucket 0.
func CurrentDayBucket(now func() time.Time) int {
	t := now()
	if t.IsZero() {
		return 0
	}
	return BucketForTimestamp(t.Unix())
}
