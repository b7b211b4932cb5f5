package dispatch

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/muninn/internal/campaign"
)

func TestLoggingPresenter(t *testing.T) {
	t.Parallel()

	c := campaign.Campaign{ID: "c1", Type: campaign.DisplayTypeModal}

	t.Run("Should resolve immediately with no hold", func(t *testing.T) {
		t.Parallel()
		p := NewLoggingPresenter(testLogger(), 0)

		resolved := make(chan bool, 1)
		p.Display(context.Background(), c, Resources{}, func(cancelled bool) {
			resolved <- cancelled
		})

		select {
		case cancelled := <-resolved:
			assert.False(t, cancelled)
		default:
			t.Fatal("display did not resolve synchronously")
		}
	})

	t.Run("Should resolve as completed after the hold elapses", func(t *testing.T) {
		t.Parallel()
		p := NewLoggingPresenter(testLogger(), 20*time.Millisecond)

		resolved := make(chan bool, 1)
		p.Display(context.Background(), c, Resources{}, func(cancelled bool) {
			resolved <- cancelled
		})

		select {
		case cancelled := <-resolved:
			assert.False(t, cancelled)
		case <-time.After(2 * time.Second):
			t.Fatal("display never resolved")
		}
	})

	t.Run("Should resolve as cancelled on close", func(t *testing.T) {
		t.Parallel()
		p := NewLoggingPresenter(testLogger(), time.Hour)

		resolved := make(chan bool, 1)
		p.Display(context.Background(), c, Resources{}, func(cancelled bool) {
			resolved <- cancelled
		})
		p.CloseCurrent()

		select {
		case cancelled := <-resolved:
			assert.True(t, cancelled)
		case <-time.After(2 * time.Second):
			t.Fatal("display never resolved")
		}
	})

	t.Run("Should resolve at most once", func(t *testing.T) {
		t.Parallel()
		p := NewLoggingPresenter(testLogger(), time.Hour)

		calls := 0
		p.Display(context.Background(), c, Resources{}, func(bool) { calls++ })
		p.CloseCurrent()
		p.CloseCurrent()

		assert.Equal(t, 1, calls)
	})

	t.Run("Should be a no-op close with nothing held", func(t *testing.T) {
		t.Parallel()
		p := NewLoggingPresenter(testLogger(), time.Hour)
		require.NotPanics(t, p.CloseCurrent)
	})

	t.Run("Should log the display", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		p := NewLoggingPresenter(slog.New(slog.NewTextHandler(&buf, nil)), 0)

		p.Display(context.Background(), c, Resources{}, func(bool) {})

		assert.Contains(t, buf.String(), "campaign_id=c1")
		assert.Contains(t, buf.String(), "type=modal")
	})
}
