package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return c.err
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublishTaxonomySaved(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "", nil)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.PublishTaxonomySaved(context.Background(), TaxonomySaved{RequestID: "r1", Items: 4, SavedAt: at}))
	require.Equal(t, DefaultSubject, conn.subject)

	var got TaxonomySaved
	require.NoError(t, json.Unmarshal(conn.data, &got))
	require.Equal(t, 4, got.Items)
	require.True(t, got.SavedAt.Equal(at))

	require.NoError(t, p.Close())
	require.True(t, conn.drained)
}

func TestPublishErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewNATSPublisher(conn, "custom", nil)
	err := p.PublishTaxonomySaved(context.Background(), TaxonomySaved{})
	require.ErrorContains(t, err, "publish custom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.PublishTaxonomySaved(ctx, TaxonomySaved{}), context.Canceled)

	_, err = ConnectNATS(" ", "", nil)
	require.Error(t, err)
}
