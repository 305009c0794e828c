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

package engine

import (
	"sync"

	"s2lite/internal/metrics"
	"s2lite/internal/types"
)

// ReadBatch is what a successful append publishes to live tailers: the
// records just written, contiguous and in seq_num order.
type ReadBatch struct {
	Records []types.Record
}

const subscriberBufferSize = FollowerMaxLag

// broadcastHub fans out appended batches to every live tail subscriber. A
// slow subscriber that fills its buffer is dropped rather than allowed to
// backpressure the append path — it can resubscribe and catch up via a
// historical scan from its last-seen seq_num.
type broadcastHub struct {
	mu   sync.Mutex
	subs map[chan ReadBatch]struct{}
}

func newBroadcastHub() *broadcastHub {
	return &broadcastHub{subs: make(map[chan ReadBatch]struct{})}
}

func (h *broadcastHub) subscribe() chan ReadBatch {
	ch := make(chan ReadBatch, subscriberBufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	metrics.TailSubscribersActive.Inc()
	return ch
}

// unsubscribe removes ch and closes it, unless publish already dropped and
// closed it for falling behind — closing twice would panic.
func (h *broadcastHub) unsubscribe(ch chan ReadBatch) {
	h.mu.Lock()
	_, existed := h.subs[ch]
	delete(h.subs, ch)
	h.mu.Unlock()
	if existed {
		metrics.TailSubscribersActive.Dec()
		close(ch)
	}
}

func (h *broadcastHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish fans the batch out without blocking: a subscriber whose buffer
// is full is dropped from the hub on the spot.
func (h *broadcastHub) publish(batch ReadBatch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- batch:
		default:
			delete(h.subs, ch)
			close(ch)
			metrics.TailSubscribersActive.Dec()
			metrics.LaggedSubscribersTotal.Inc()
		}
	}
}
