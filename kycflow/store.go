package kycflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DraftTimeout bounds how long an abandoned draft lingers in Redis.
const DraftTimeout = 24 * time.Hour

// DraftStore persists in-progress drafts. Implementations must be safe for
// concurrent use.
type DraftStore interface {
	// SaveDraft stores the draft under its ID, overwriting any previous
	// version.
	SaveDraft(draft *IdentityDraft) error

	// GetDraft returns the draft for the given ID, or an error when it does
	// not exist.
	GetDraft(id string) (*IdentityDraft, error)

	// DeleteDraft removes the draft. A missing draft is an error.
	DeleteDraft(id string) error
}

// BookingStore keeps finalized application records.
type BookingStore interface {
	AppendBooking(booking Booking) error
	ListBookings() ([]Booking, error)
}

// ------------------------------------------------------------------------------

type InMemoryDraftStore struct {
	drafts map[string]*IdentityDraft
	mutex  sync.Mutex
}

func NewInMemoryDraftStore() *InMemoryDraftStore {
	return &InMemoryDraftStore{drafts: make(map[string]*IdentityDraft)}
}

func (s *InMemoryDraftStore) SaveDraft(draft *IdentityDraft) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *draft
	s.drafts[draft.ID] = &copied
	return nil
}

func (s *InMemoryDraftStore) GetDraft(id string) (*IdentityDraft, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if draft, ok := s.drafts[id]; ok {
		copied := *draft
		return &copied, nil
	}
	return nil, fmt.Errorf("failed to find draft for %s", id)
}

func (s *InMemoryDraftStore) DeleteDraft(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.drafts[id]; ok {
		delete(s.drafts, id)
		return nil
	}
	return fmt.Errorf("failed to remove draft for %s, because it wasn't there", id)
}

type InMemoryBookingStore struct {
	bookings []Booking
	mutex    sync.Mutex
}

func NewInMemoryBookingStore() *InMemoryBookingStore {
	return &InMemoryBookingStore{}
}

func (s *InMemoryBookingStore) AppendBooking(booking Booking) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.bookings = append(s.bookings, booking)
	return nil
}

func (s *InMemoryBookingStore) ListBookings() ([]Booking, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]Booking, len(s.bookings))
	copy(out, s.bookings)
	return out, nil
}

// ------------------------------------------------------------------------------

type RedisDraftStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisDraftStore(client *redis.Client, namespace string) *RedisDraftStore {
	return &RedisDraftStore{client: client, namespace: namespace}
}

func draftKey(namespace, id string) string {
	return fmt.Sprintf("%s:draft:%s", namespace, id)
}

func (s *RedisDraftStore) SaveDraft(draft *IdentityDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	ctx := context.Background()
	return s.client.Set(ctx, draftKey(s.namespace, draft.ID), payload, DraftTimeout).Err()
}

func (s *RedisDraftStore) GetDraft(id string) (*IdentityDraft, error) {
	ctx := context.Background()
	payload, err := s.client.Get(ctx, draftKey(s.namespace, id)).Result()
	if err != nil {
		return nil, err
	}
	var draft IdentityDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

func (s *RedisDraftStore) DeleteDraft(id string) error {
	ctx := context.Background()
	return s.client.Del(ctx, draftKey(s.namespace, id)).Err()
}

type RedisBookingStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisBookingStore(client *redis.Client, namespace string) *RedisBookingStore {
	return &RedisBookingStore{client: client, namespace: namespace}
}

func (s *RedisBookingStore) bookingsKey() string {
	return fmt.Sprintf("%s:bookings", s.namespace)
}

func (s *RedisBookingStore) AppendBooking(booking Booking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}
	ctx := context.Background()
	return s.client.RPush(ctx, s.bookingsKey(), payload).Err()
}

func (s *RedisBookingStore) ListBookings() ([]Booking, error) {
	ctx := context.Background()
	entries, err := s.client.LRange(ctx, s.bookingsKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	bookings := make([]Booking, 0, len(entries))
	for _, entry := range entries {
		var booking Booking
		if err := json.Unmarshal([]byte(entry), &booking); err != nil {
			return nil, fmt.Errorf("failed to unmarshal booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}
