// Package queue implements a persisted FIFO of opaque payloads on top of the
// state key/value store. Head and tail cursors live next to the items so a
// queue survives restarts and rolls back with the surrounding overlay.
package queue

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrTopicRequired is returned when a queue is used without a topic.
var ErrTopicRequired = errors.New("queue: topic required")

// Store is the subset of the state manager the queue persists through.
type Store interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVDelete(key []byte) error
}

// Queue is a FIFO addressed by topic. Items occupy the sequence range
// [head, tail).
type Queue struct {
	store Store
	topic string
}

// New binds a queue to topic inside store.
func New(store Store, topic string) *Queue {
	return &Queue{store: store, topic: topic}
}

// Topic returns the queue name.
func (q *Queue) Topic() string { return q.topic }

func (q *Queue) key(suffix string) []byte {
	return []byte("queue/" + q.topic + "/" + suffix)
}

func (q *Queue) itemKey(seq uint64) []byte {
	return q.key(strconv.FormatUint(seq, 10))
}

func (q *Queue) check() error {
	if q == nil || q.store == nil {
		return fmt.Errorf("queue: store not configured")
	}
	if q.topic == "" {
		return ErrTopicRequired
	}
	return nil
}

func (q *Queue) cursor(name string) (uint64, error) {
	var value uint64
	if _, err := q.store.KVGet(q.key(name), &value); err != nil {
		return 0, fmt.Errorf("queue %s: load %s: %w", q.topic, name, err)
	}
	return value, nil
}

func (q *Queue) cursors() (uint64, uint64, error) {
	head, err := q.cursor("head")
	if err != nil {
		return 0, 0, err
	}
	tail, err := q.cursor("tail")
	if err != nil {
		return 0, 0, err
	}
	return head, tail, nil
}

// Push appends payload to the back of the queue.
func (q *Queue) Push(payload []byte) error {
	if err := q.check(); err != nil {
		return err
	}
	tail, err := q.cursor("tail")
	if err != nil {
		return err
	}
	if err := q.store.KVPut(q.itemKey(tail), append([]byte(nil), payload...)); err != nil {
		return err
	}
	return q.store.KVPut(q.key("tail"), tail+1)
}

// Peek returns the payload at the front without removing it.
func (q *Queue) Peek() ([]byte, bool, error) {
	if err := q.check(); err != nil {
		return nil, false, err
	}
	head, tail, err := q.cursors()
	if err != nil || head == tail {
		return nil, false, err
	}
	var payload []byte
	ok, err := q.store.KVGet(q.itemKey(head), &payload)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("queue %s: item %d missing", q.topic, head)
	}
	return payload, true, nil
}

// Pop removes and returns the payload at the front.
func (q *Queue) Pop() ([]byte, bool, error) {
	payload, ok, err := q.Peek()
	if err != nil || !ok {
		return nil, ok, err
	}
	head, tail, err := q.cursors()
	if err != nil {
		return nil, false, err
	}
	if err := q.store.KVDelete(q.itemKey(head)); err != nil {
		return nil, false, err
	}
	head++
	if head == tail {
		// reset an empty queue so sequence numbers stay small
		if err := q.store.KVDelete(q.key("head")); err != nil {
			return nil, false, err
		}
		if err := q.store.KVDelete(q.key("tail")); err != nil {
			return nil, false, err
		}
		return payload, true, nil
	}
	if err := q.store.KVPut(q.key("head"), head); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Len returns the number of queued items.
func (q *Queue) Len() (uint64, error) {
	if err := q.check(); err != nil {
		return 0, err
	}
	head, tail, err := q.cursors()
	if err != nil {
		return 0, err
	}
	return tail - head, nil
}
