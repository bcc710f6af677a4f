package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/guideshop/internal/shop"
)

func TestSessionJSON(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewPurchase(7, shop.Course, "Go Basics", now)
	s.Step = StepAwaitingDecision
	s.Handshake = &shop.Handshake{Token: "abc", BuyerID: 7, Kind: shop.Course, ItemName: "Go Basics",
		AdminID: 1, Prompt: shop.MessageRef{ChatID: 1, MessageID: 55}, State: shop.HandshakePending, OpenedAt: now}

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var back Session
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s, back)

	hs, ok := back.OpenHandshake()
	require.True(t, ok)
	assert.Equal(t, 55, hs.Prompt.MessageID)
}

func TestSessionIn(t *testing.T) {
	s := NewSubmission(1, shop.Guide, time.Now())
	assert.True(t, s.In(FlowSubmission))
	assert.True(t, s.In(FlowSubmission, StepPhoto, StepName))
	assert.False(t, s.In(FlowSubmission, StepFile))
	assert.False(t, s.In(FlowPurchase))

	_, ok := s.OpenHandshake()
	assert.False(t, ok)
}
