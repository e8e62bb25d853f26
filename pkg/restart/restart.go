package restart

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/matensemble/matensemble/pkg/errtypes"
	"github.com/matensemble/matensemble/pkg/log"
	"github.com/matensemble/matensemble/pkg/types"
)

var (
	bucketCompleted = []byte("Completed tasks")
	bucketRunning   = []byte("Running tasks")
	bucketPending   = []byte("Pending tasks")
	bucketFailed    = []byte("Failed tasks")
)

// TaskLog is the restart record: the four task buckets a checkpoint tracks.
type TaskLog struct {
	Completed []string
	Running   []string
	Pending   []string
	Failed    []types.FailedTask
}

// FileName returns the conventional restart file name for a given completed
// count: one file per checkpoint.
func FileName(completedCount int) string {
	return fmt.Sprintf("restart_%d.dat", completedCount)
}

// Create writes log to dir/restart_<len(log.Completed)>.dat inside a single
// bbolt transaction and returns the path written.
func Create(dir string, log_ TaskLog) (string, error) {
	path := filepath.Join(dir, FileName(len(log_.Completed)))

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return "", fmt.Errorf("open restart file %s: %w", path, err)
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		if err := putBucket(tx, bucketCompleted, log_.Completed); err != nil {
			return err
		}
		if err := putBucket(tx, bucketRunning, log_.Running); err != nil {
			return err
		}
		if err := putBucket(tx, bucketPending, log_.Pending); err != nil {
			return err
		}
		return putBucket(tx, bucketFailed, log_.Failed)
	})
	if err != nil {
		return "", fmt.Errorf("write restart file %s: %w", path, err)
	}

	return path, nil
}

// putBucket replaces bucket's single "data" key with the JSON encoding of
// value. Buckets are created on demand so a reader of an older file (missing
// a bucket this version added) never errors.
func putBucket(tx *bolt.Tx, name []byte, value any) error {
	b, err := tx.CreateBucketIfNotExists(name)
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode bucket %s: %w", name, err)
	}
	return b.Put([]byte("data"), data)
}

func getBucket(tx *bolt.Tx, name []byte, dest any) error {
	b := tx.Bucket(name)
	if b == nil {
		return nil
	}
	data := b.Get([]byte("data"))
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Load reads a restart file written by Create.
//
// Any task id found in the Running bucket is moved into Pending before
// being returned, since the futures backing those tasks cannot survive a
// process restart. This is logged at WARN, not left for the caller to
// notice.
func Load(path string) (TaskLog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true})
	if err != nil {
		log.Logger.Warn().Err(err).Str("path", path).Msg("failed to open restart file")
		return TaskLog{}, &errtypes.RestartLoadFailure{Path: path, Err: err}
	}
	defer db.Close()

	var result TaskLog
	err = db.View(func(tx *bolt.Tx) error {
		if err := getBucket(tx, bucketCompleted, &result.Completed); err != nil {
			return err
		}
		if err := getBucket(tx, bucketRunning, &result.Running); err != nil {
			return err
		}
		if err := getBucket(tx, bucketPending, &result.Pending); err != nil {
			return err
		}
		return getBucket(tx, bucketFailed, &result.Failed)
	})
	if err != nil {
		log.Logger.Warn().Err(err).Str("path", path).Msg("failed to parse restart file")
		return TaskLog{}, &errtypes.RestartLoadFailure{Path: path, Err: err}
	}

	if len(result.Running) > 0 {
		log.Logger.Warn().
			Int("count", len(result.Running)).
			Str("path", path).
			Msg("restart file has running tasks with no live future; moving to pending")
		result.Pending = append(result.Pending, result.Running...)
		result.Running = nil
	}

	return result, nil
}
