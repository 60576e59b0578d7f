package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/are-sim/event"
)

func TestLogAppendGetAndTimeOf(t *testing.T) {
	log := event.NewLog()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	e := event.New("e1", event.KindAction, event.ActorEnv)
	e.Complete("ok", nil, now)
	log.Append(e)

	assert.Equal(t, 1, log.Len())
	got, ok := log.Get("e1")
	require.True(t, ok)
	assert.Equal(t, "ok", got.Completed.ReturnValue)

	ts, ok := log.TimeOf("e1")
	require.True(t, ok)
	assert.Equal(t, now, ts)

	_, ok = log.TimeOf("nope")
	assert.False(t, ok)
}

func TestLogReturnValuePathResolvesNestedField(t *testing.T) {
	log := event.NewLog()
	e := event.New("e2", event.KindAction, event.ActorEnv)
	e.Complete(map[string]any{"folder": map[string]any{"id": "f9", "count": 3}}, nil, time.Now())
	log.Append(e)

	res, ok := log.ReturnValuePath("e2", "folder.id")
	require.True(t, ok)
	assert.Equal(t, "f9", res.String())

	_, ok = log.ReturnValuePath("e2", "folder.missing")
	assert.False(t, ok)
}

func TestLogReturnValuePathMissingEventOrNilReturn(t *testing.T) {
	log := event.NewLog()
	_, ok := log.ReturnValuePath("absent", "x")
	assert.False(t, ok)

	e := event.New("e3", event.KindAction, event.ActorEnv)
	e.Complete(nil, assertError(), time.Now())
	log.Append(e)
	_, ok = log.ReturnValuePath("e3", "")
	assert.False(t, ok)
}

func assertError() error { return fmtErr{} }

type fmtErr struct{}

func (fmtErr) Error() string { return "boom" }

func TestLogAllReturnsSnapshotInOrder(t *testing.T) {
	log := event.NewLog()
	for _, id := range []string{"a", "b", "c"} {
		e := event.New(id, event.KindAction, event.ActorEnv)
		e.Complete(nil, nil, time.Now())
		log.Append(e)
	}
	all := log.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
