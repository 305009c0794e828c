// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lifecycle runs the cooperative background tasks a basin/stream
// substrate needs but no single append or read call can afford to do
// inline: resuming basin deletion, sweeping expired delete-on-empty
// deadlines, garbage-collecting trimmed records, and evicting idle
// in-memory stream state. It mirrors the teacher's Worker: a fixed set of
// goroutines woken by a ticker, with a CompareAndSwap-guarded Stop that
// waits for them to drain.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"

	"s2lite/internal/engine"
	"s2lite/internal/keyspace"
	"s2lite/internal/kv"
	"s2lite/internal/metrics"
	"s2lite/internal/types"
)

const (
	// DefaultWorkerCount is the fixed pool of cleanup goroutines basins are
	// rendezvous-hashed onto.
	DefaultWorkerCount = 4

	// DefaultTickInterval is how often each worker wakes to scan for work.
	DefaultTickInterval = 5 * time.Second

	// DeletionChunkSize bounds how many stream-record keys a single
	// iteration of a deletion task deletes, per spec's per-iteration
	// timeout discipline (§5: deletion chunks bounded to <=1000 records).
	DeletionChunkSize = 1000
)

// Coordinator owns every background task. One Coordinator per server
// process, constructed with the same kv.Store and engine.Engine the
// serving layer uses.
type Coordinator struct {
	store kv.Store
	eng   *engine.Engine

	workerIDs []string
	ring      *rendezvous.Rendezvous

	tickInterval time.Duration
	evictionTick time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

type Option func(*Coordinator)

func WithWorkerCount(n int) Option {
	return func(c *Coordinator) { c.workerIDs = workerIDs(n) }
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.tickInterval = d }
}

func WithEvictionTickInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.evictionTick = d }
}

func New(store kv.Store, eng *engine.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		eng:          eng,
		workerIDs:    workerIDs(DefaultWorkerCount),
		tickInterval: DefaultTickInterval,
		evictionTick: time.Minute,
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ring = rendezvous.New(c.workerIDs, hashString)
	return c
}

func workerIDs(n int) []string {
	if n < 1 {
		n = 1
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("cleanup-%d", i)
	}
	return ids
}

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

// Start launches one goroutine per cleanup worker plus the eviction sweep.
func (c *Coordinator) Start() {
	fmt.Println("lifecycle: starting background coordinator...")
	c.wg.Add(len(c.workerIDs) + 1)
	for _, id := range c.workerIDs {
		id := id
		go func() {
			defer c.wg.Done()
			c.workerLoop(id)
		}()
	}
	go func() {
		defer c.wg.Done()
		c.evictionLoop()
	}()
}

// Stop signals every goroutine to exit and waits for them to finish.
func (c *Coordinator) Stop() {
	if !atomic.CompareAndSwapUint32(&c.stopped, 0, 1) {
		return
	}
	fmt.Println("lifecycle: stopping background coordinator...")
	close(c.stopChan)
	c.wg.Wait()
}

func (c *Coordinator) workerLoop(workerID string) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.runCycle(context.Background(), workerID)
		case <-c.stopChan:
			return
		}
	}
}

func (c *Coordinator) evictionLoop() {
	ticker := time.NewTicker(c.evictionTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.eng.EvictIdleStreams()
		case <-c.stopChan:
			return
		}
	}
}

// owns reports whether workerID is responsible for basin, per the
// rendezvous assignment — the mechanism that keeps at most one worker ever
// touching a given basin's deletion cursor.
func (c *Coordinator) owns(workerID string, basin types.BasinName) bool {
	return c.ring.Lookup(basin.String()) == workerID
}

// runCycle performs one pass of every background task this worker owns.
func (c *Coordinator) runCycle(ctx context.Context, workerID string) {
	cycleStart := time.Now()
	defer func() { metrics.ObserveLifecycleCycle(workerID, time.Since(cycleStart)) }()

	basins, err := c.listPendingDeletionBasins(ctx)
	if err != nil {
		fmt.Printf("lifecycle: list pending basin deletions: %v\n", err)
	} else {
		for _, basin := range basins {
			if !c.owns(workerID, basin) {
				continue
			}
			if err := c.advanceBasinDeletion(ctx, basin); err != nil {
				fmt.Printf("lifecycle: basin deletion %q: %v\n", basin, err)
			}
		}
	}

	if err := c.sweepExpiredDeadlines(ctx, workerID); err != nil {
		fmt.Printf("lifecycle: delete-on-empty sweep: %v\n", err)
	}

	allBasins, err := c.listBasins(ctx)
	if err != nil {
		fmt.Printf("lifecycle: list basins: %v\n", err)
		return
	}
	for _, basin := range allBasins {
		if !c.owns(workerID, basin) {
			continue
		}
		if err := c.trimGCBasin(ctx, basin); err != nil {
			fmt.Printf("lifecycle: trim gc %q: %v\n", basin, err)
		}
	}
}

func (c *Coordinator) listBasins(ctx context.Context) ([]types.BasinName, error) {
	start, end := keyspace.BasinScanRange()
	entries, err := c.store.Scan(ctx, start, end, 0, kv.DurabilityRemote)
	if err != nil {
		return nil, err
	}
	out := make([]types.BasinName, 0, len(entries))
	for _, ent := range entries {
		name, err := keyspace.DeserBasinKey(ent.Key)
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (c *Coordinator) listPendingDeletionBasins(ctx context.Context) ([]types.BasinName, error) {
	start := []byte{keyspace.KeyTypeBasinDeletionPending.Byte()}
	end, _ := keyspace.IncrementBytes(start)
	entries, err := c.store.Scan(ctx, start, end, 0, kv.DurabilityRemote)
	if err != nil {
		return nil, err
	}
	out := make([]types.BasinName, 0, len(entries))
	for _, ent := range entries {
		name, err := keyspace.DeserBasinDeletionPendingKey(ent.Key)
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// advanceBasinDeletion deletes up to DeletionChunkSize streams of basin,
// resuming from the persisted cursor, and clears the marker once every
// stream under the basin is gone.
func (c *Coordinator) advanceBasinDeletion(ctx context.Context, basin types.BasinName) error {
	cursorVal, found, err := c.store.Get(ctx, keyspace.BasinDeletionPendingKey(basin), kv.DurabilityRemote)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	var cursor types.StreamName
	if found {
		cursor, err = keyspace.DeserBasinDeletionPendingValue(cursorVal)
		if err != nil {
			return fmt.Errorf("decode cursor: %w", err)
		}
	}

	start, end := keyspace.StreamListRange(basin, cursor)
	entries, err := c.store.Scan(ctx, start, end, DeletionChunkSize, kv.DurabilityRemote)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	if len(entries) == 0 {
		ops := []kv.Op{
			kv.Delete(keyspace.BasinDeletionPendingKey(basin)),
			kv.Delete(keyspace.BasinKey(basin)),
		}
		return c.store.Apply(ctx, ops)
	}

	var lastStream types.StreamName
	for _, ent := range entries {
		_, stream, err := keyspace.DeserStreamKey(ent.Key)
		if err != nil {
			continue
		}
		if err := c.deleteStream(ctx, basin, stream); err != nil {
			return fmt.Errorf("delete stream %q: %w", stream, err)
		}
		lastStream = stream
	}

	return c.store.Apply(ctx, []kv.Op{
		kv.Put(keyspace.BasinDeletionPendingKey(basin), keyspace.SerBasinDeletionPendingValue(lastStream)),
	})
}

// deleteStream removes every durable key belonging to one stream: its
// records, timestamp index, trim point, tail position, id mapping, and the
// Stream row itself, then drops any cached in-memory state.
func (c *Coordinator) deleteStream(ctx context.Context, basin types.BasinName, stream types.StreamName) error {
	id := engine.LookupStreamID(basin, stream)

	if err := c.deleteRecordRange(ctx, id); err != nil {
		return err
	}

	ops := []kv.Op{
		kv.Delete(keyspace.StreamTrimPointKey(id)),
		kv.Delete(keyspace.StreamTailPositionKey(id)),
		kv.Delete(keyspace.StreamIdMappingKey(id)),
		kv.Delete(keyspace.StreamKey(basin, stream)),
	}
	if err := c.store.Apply(ctx, ops); err != nil {
		return err
	}
	c.eng.ForgetStream(id)
	return nil
}

// deleteRecordRange range-deletes every StreamRecord and
// StreamRecordTimestamp entry of a stream, in bounded chunks so a very long
// stream doesn't turn one call into an unbounded transaction.
func (c *Coordinator) deleteRecordRange(ctx context.Context, id keyspace.StreamID) error {
	for {
		start, end := keyspace.StreamRecordScanRange(id, 0, 0)
		entries, err := c.store.Scan(ctx, start, end, DeletionChunkSize, kv.DurabilityRemote)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		ops := make([]kv.Op, 0, len(entries))
		for _, ent := range entries {
			ops = append(ops, kv.Delete(ent.Key))
		}
		if err := c.store.Apply(ctx, ops); err != nil {
			return err
		}
		if len(entries) < DeletionChunkSize {
			break
		}
	}

	tsStart, tsEnd := keyspace.StreamRecordTimestampScanRange(id, 0)
	for {
		entries, err := c.store.Scan(ctx, tsStart, tsEnd, DeletionChunkSize, kv.DurabilityRemote)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		ops := make([]kv.Op, 0, len(entries))
		for _, ent := range entries {
			ops = append(ops, kv.Delete(ent.Key))
		}
		if err := c.store.Apply(ctx, ops); err != nil {
			return err
		}
		if len(entries) < DeletionChunkSize {
			break
		}
	}
	return nil
}

// sweepExpiredDeadlines scans the delete-on-empty timer wheel for entries
// at or before now, re-verifies each is still empty and idle long enough,
// and deletes the stream. A row whose stream is no longer empty, or whose
// id mapping is gone, is dropped; a row whose stream is empty but not yet
// idle long enough is left for a later sweep. After a successful delete the
// row stays until a later sweep finds the mapping gone and drops it.
func (c *Coordinator) sweepExpiredDeadlines(ctx context.Context, workerID string) error {
	nowSecs := uint32(time.Now().Unix())
	start, end := keyspace.ExpiredDeadlineScanRange(nowSecs)
	entries, err := c.store.Scan(ctx, start, end, DeletionChunkSize, kv.DurabilityRemote)
	if err != nil {
		return err
	}

	for _, ent := range entries {
		deadlineSecs, id, err := keyspace.DeserStreamDeleteOnEmptyDeadlineKey(ent.Key)
		if err != nil {
			continue
		}
		basin, stream, err := c.resolveStreamName(ctx, id)
		if err != nil {
			// Stream already gone; just drop the stale deadline row.
			c.store.Apply(ctx, []kv.Op{kv.Delete(ent.Key)})
			continue
		}
		if !c.owns(workerID, basin) {
			continue
		}

		minAge, err := keyspace.DeserStreamDeleteOnEmptyDeadlineValue(ent.Value)
		if err != nil {
			continue
		}

		empty, idleLongEnough, err := c.streamStillEmpty(ctx, id, minAge, deadlineSecs)
		if err != nil {
			fmt.Printf("lifecycle: recheck %q/%q: %v\n", basin, stream, err)
			continue
		}
		if !empty {
			c.store.Apply(ctx, []kv.Op{kv.Delete(ent.Key)})
			continue
		}
		if !idleLongEnough {
			continue // not due yet after re-check; leave the row for a later sweep
		}
		if err := c.deleteStream(ctx, basin, stream); err != nil {
			fmt.Printf("lifecycle: delete-on-empty %q/%q: %v\n", basin, stream, err)
			continue
		}
	}
	return nil
}

func (c *Coordinator) resolveStreamName(ctx context.Context, id keyspace.StreamID) (types.BasinName, types.StreamName, error) {
	val, found, err := c.store.Get(ctx, keyspace.StreamIdMappingKey(id), kv.DurabilityRemote)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", fmt.Errorf("stream id mapping not found")
	}
	return keyspace.DeserStreamIdMappingValue(val)
}

// streamStillEmpty reports whether a stream has no retained records (tail
// caught up with the trim point, or one past it when the only record at or
// above the trim point is the trim command itself) and has been that way for at least min_age
// relative to the deadline's recorded wallclock, as stored alongside the
// tail position.
func (c *Coordinator) streamStillEmpty(ctx context.Context, id keyspace.StreamID, minAge time.Duration, deadlineSecs uint32) (empty, idleLongEnough bool, err error) {
	tailVal, found, err := c.store.Get(ctx, keyspace.StreamTailPositionKey(id), kv.DurabilityRemote)
	if err != nil {
		return false, false, err
	}
	if !found {
		return true, true, nil
	}
	tail, wallclockSecs, err := keyspace.DeserStreamTailPositionValue(tailVal)
	if err != nil {
		return false, false, err
	}

	trimPoint := uint64(0)
	trimmed := false
	if trimVal, found, err := c.store.Get(ctx, keyspace.StreamTrimPointKey(id), kv.DurabilityRemote); err != nil {
		return false, false, err
	} else if found {
		trimmed = true
		trimPoint, err = keyspace.DeserStreamTrimPointValue(trimVal)
		if err != nil {
			return false, false, err
		}
	}

	empty = tail.SeqNum == trimPoint || (trimmed && tail.SeqNum == trimPoint+1)
	if !empty {
		return false, false, nil
	}
	idleLongEnough = uint32(time.Since(time.Unix(int64(wallclockSecs), 0)).Seconds()) >= uint32(minAge.Seconds()) || uint32(deadlineSecs) <= uint32(time.Now().Unix())
	return empty, idleLongEnough, nil
}

// trimGCBasin range-deletes records below the trim point for every stream
// in one basin, in bounded chunks.
func (c *Coordinator) trimGCBasin(ctx context.Context, basin types.BasinName) error {
	start, end := keyspace.StreamListRange(basin, "")
	entries, err := c.store.Scan(ctx, start, end, 0, kv.DurabilityRemote)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		_, stream, err := keyspace.DeserStreamKey(ent.Key)
		if err != nil {
			continue
		}
		id := engine.LookupStreamID(basin, stream)
		if err := c.trimGCStream(ctx, id); err != nil {
			fmt.Printf("lifecycle: trim gc %q/%q: %v\n", basin, stream, err)
		}
	}
	return nil
}

func (c *Coordinator) trimGCStream(ctx context.Context, id keyspace.StreamID) error {
	trimVal, found, err := c.store.Get(ctx, keyspace.StreamTrimPointKey(id), kv.DurabilityRemote)
	if err != nil || !found {
		return err
	}
	trimPoint, err := keyspace.DeserStreamTrimPointValue(trimVal)
	if err != nil {
		return err
	}

	start, end := keyspace.StreamRecordScanRange(id, 0, trimPoint)
	entries, err := c.store.Scan(ctx, start, end, DeletionChunkSize, kv.DurabilityRemote)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	seqNums := make(map[uint64]struct{}, len(entries))
	ops := make([]kv.Op, 0, len(entries)*2)
	for _, ent := range entries {
		_, seqNum, err := keyspace.DeserStreamRecordKey(ent.Key)
		if err != nil {
			continue
		}
		seqNums[seqNum] = struct{}{}
		ops = append(ops, kv.Delete(ent.Key))
	}

	tsStart, tsEnd := keyspace.StreamRecordTimestampScanRange(id, 0)
	tsEntries, err := c.store.Scan(ctx, tsStart, tsEnd, 0, kv.DurabilityRemote)
	if err == nil {
		for _, tsEnt := range tsEntries {
			_, pos, err := keyspace.DeserStreamRecordTimestampKey(tsEnt.Key)
			if err != nil {
				continue
			}
			if _, ok := seqNums[pos.SeqNum]; ok {
				ops = append(ops, kv.Delete(tsEnt.Key))
			}
		}
	}
	return c.store.Apply(ctx, ops)
}
