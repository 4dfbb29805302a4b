package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesNotifications(t *testing.T) {
	n := New()

	var got []Notification
	unsubscribe := n.Subscribe(func(note Notification) {
		got = append(got, note)
	})

	n.Infof("hello %s", "world")
	n.Successf("done")
	n.Errorf("boom")

	require.Len(t, got, 3)
	assert.Equal(t, LevelInfo, got[0].Level)
	assert.Equal(t, "hello world", got[0].Message)
	assert.Equal(t, LevelSuccess, got[1].Level)
	assert.Equal(t, LevelError, got[2].Level)
	assert.False(t, got[0].Time.IsZero())

	unsubscribe()
	n.Infof("after unsubscribe")
	assert.Len(t, got, 3)
}

func TestRecentReturnsNewestLast(t *testing.T) {
	n := New()

	n.Infof("first")
	n.Infof("second")
	n.Infof("third")

	recent := n.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message)
	assert.Equal(t, "third", recent[1].Message)

	all := n.Recent(0)
	assert.Len(t, all, 3)
}

func TestHistoryIsBounded(t *testing.T) {
	n := New()

	for i := 0; i < historySize+10; i++ {
		n.Infof("note %d", i)
	}

	recent := n.Recent(0)
	require.Len(t, recent, historySize)
	assert.Equal(t, fmt.Sprintf("note %d", historySize+9), recent[len(recent)-1].Message)
}
