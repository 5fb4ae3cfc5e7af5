package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
)

// stubBackend serves catalog reads and counts upstream calls
type stubBackend struct {
	Backend
	event    *domain.Event
	sections []domain.Section
	calls    int
	err      error
}

func (s *stubBackend) GetEvent(ctx context.Context, eventID int) (*domain.Event, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.event, nil
}

func (s *stubBackend) ListSections(ctx context.Context, eventID int) ([]domain.Section, error) {
	s.calls++
	return s.sections, s.err
}

func (s *stubBackend) OccupiedSeats(ctx context.Context, eventID, sectionID int) ([]domain.SeatID, error) {
	s.calls++
	return []domain.SeatID{"A-1"}, nil
}

func TestCachedBackend_MissThenStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &stubBackend{event: &domain.Event{ID: 7, Title: "Festival", Mode: domain.EventModeOwn, Price: 1000}}
	cached := NewCachedBackend(upstream, db, 30*time.Second, nil)

	data, err := json.Marshal(upstream.event)
	require.NoError(t, err)

	mock.ExpectGet(EventKey(7)).RedisNil()
	mock.ExpectSet(EventKey(7), string(data), 30*time.Second).SetVal("OK")

	event, err := cached.GetEvent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Festival", event.Title)
	assert.Equal(t, 1, upstream.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedBackend_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &stubBackend{}
	cached := NewCachedBackend(upstream, db, time.Minute, nil)

	sections := []domain.Section{{ID: 1, Name: "Platea"}, {ID: 2, Name: "Cancha"}}
	data, _ := json.Marshal(sections)
	mock.ExpectGet(SectionsKey(7)).SetVal(string(data))

	got, err := cached.ListSections(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, sections, got)
	assert.Zero(t, upstream.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedBackend_RedisDownFallsBack(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &stubBackend{event: &domain.Event{ID: 7, Title: "Festival"}}
	cached := NewCachedBackend(upstream, db, time.Minute, nil)

	data, _ := json.Marshal(upstream.event)
	mock.ExpectGet(EventKey(7)).SetErr(errors.New("connection refused"))
	mock.ExpectSet(EventKey(7), string(data), time.Minute).SetErr(errors.New("connection refused"))

	event, err := cached.GetEvent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Festival", event.Title)
	assert.Equal(t, 1, upstream.calls)
}

func TestCachedBackend_UpstreamErrorNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &stubBackend{err: errors.New("backend down")}
	cached := NewCachedBackend(upstream, db, time.Minute, nil)

	mock.ExpectGet(EventKey(7)).RedisNil()

	_, err := cached.GetEvent(context.Background(), 7)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedBackend_OccupancyBypassesCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &stubBackend{}
	cached := NewCachedBackend(upstream, db, time.Minute, nil)

	seats, err := cached.OccupiedSeats(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.SeatID{"A-1"}, seats)
	assert.Equal(t, 1, upstream.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedBackend_Invalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cached := NewCachedBackend(&stubBackend{}, db, time.Minute, nil)

	mock.ExpectDel(EventKey(7), SectionsKey(7), ResaleTicketsKey(7)).SetVal(3)

	require.NoError(t, cached.Invalidate(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
