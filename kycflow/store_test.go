package kycflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryDraftStoreRoundtrip(t *testing.T) {
	store := NewInMemoryDraftStore()

	draft := &IdentityDraft{ID: "d1", Stage: StageIDVerified, IDType: "Passport", IDVerified: true, IDVerifiedAt: time.Now()}
	require.NoError(t, store.SaveDraft(draft))

	loaded, err := store.GetDraft("d1")
	require.NoError(t, err)
	require.Equal(t, StageIDVerified, loaded.Stage)
	require.Equal(t, "Passport", loaded.IDType)

	// Stores hand out copies, not shared pointers.
	loaded.Stage = StageFinalized
	again, err := store.GetDraft("d1")
	require.NoError(t, err)
	require.Equal(t, StageIDVerified, again.Stage)
}

func TestInMemoryDraftStoreMissingDraft(t *testing.T) {
	store := NewInMemoryDraftStore()
	_, err := store.GetDraft("nope")
	require.Error(t, err)
	require.Error(t, store.DeleteDraft("nope"))
}

func TestInMemoryDraftStoreDelete(t *testing.T) {
	store := NewInMemoryDraftStore()
	require.NoError(t, store.SaveDraft(&IdentityDraft{ID: "d1"}))
	require.NoError(t, store.DeleteDraft("d1"))
	_, err := store.GetDraft("d1")
	require.Error(t, err)
}

func TestInMemoryBookingStoreAppendsInOrder(t *testing.T) {
	store := NewInMemoryBookingStore()
	require.NoError(t, store.AppendBooking(Booking{ID: "b1"}))
	require.NoError(t, store.AppendBooking(Booking{ID: "b2"}))

	bookings, err := store.ListBookings()
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	require.Equal(t, "b1", bookings[0].ID)
	require.Equal(t, "b2", bookings[1].ID)
}
