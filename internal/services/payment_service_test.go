package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/forgeline/internal/services"
)

func TestSimulationRequestPaymentIsDeterministic(t *testing.T) {
	engine := services.NewPaymentService("", "", "simnet")
	require.True(t, engine.SimulationMode())

	ctx := context.Background()
	first, err := engine.RequestPayment(ctx, "ord_1", 49.99, "jo@example.com")
	require.NoError(t, err)
	second, err := engine.RequestPayment(ctx, "ord_1", 49.99, "jo@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.RequestURI, second.RequestURI)
	assert.True(t, first.SimulationMode)
	assert.Equal(t, "simnet", first.Network)
	assert.NotEmpty(t, first.TransactionID)

	other, err := engine.RequestPayment(ctx, "ord_2", 49.99, "jo@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionID, other.TransactionID)
}

func TestSimulationCheckStatusEvenOddRule(t *testing.T) {
	engine := services.NewPaymentService("", "", "")
	ctx := context.Background()

	t.Run("even hex suffix confirms with six confirmations", func(t *testing.T) {
		for _, txID := range []string{"tx0", "tx2", "deadbeefa", "ffc", "TXE"} {
			res, err := engine.CheckStatus(ctx, txID)
			require.NoError(t, err)
			assert.Equal(t, services.PayStatusConfirmed, res.Status, txID)
			assert.Equal(t, 6, res.Confirmations, txID)
			assert.NotEmpty(t, res.TransactionHash, txID)
			assert.True(t, res.SimulationMode)
		}
	})

	t.Run("odd or non-hex suffix stays pending", func(t *testing.T) {
		for _, txID := range []string{"tx1", "tx3", "deadbeefb", "ffz", "tx_"} {
			res, err := engine.CheckStatus(ctx, txID)
			require.NoError(t, err)
			assert.Equal(t, services.PayStatusPending, res.Status, txID)
			assert.Equal(t, 0, res.Confirmations, txID)
			assert.Empty(t, res.TransactionHash, txID)
		}
	})

	t.Run("repeated checks agree", func(t *testing.T) {
		a, err := engine.CheckStatus(ctx, "tx4")
		require.NoError(t, err)
		b, err := engine.CheckStatus(ctx, "tx4")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestSimulationForceRefresh(t *testing.T) {
	engine := services.NewPaymentService("", "", "")
	ctx := context.Background()

	res, err := engine.ForceRefresh(ctx, "tx6", "ord_1")
	require.NoError(t, err)
	assert.True(t, res.Refreshed)
	assert.Equal(t, services.PayStatusConfirmed, res.Status)
	assert.Equal(t, 6, res.Confirmations)
}

func TestProviderErrorClassification(t *testing.T) {
	auth := &services.PaymentProviderError{StatusCode: 401, Message: "bad key", Endpoint: "/v1/payment-requests"}
	assert.True(t, auth.IsAuthError())

	forbidden := &services.PaymentProviderError{StatusCode: 403}
	assert.True(t, forbidden.IsAuthError())

	unavailable := &services.PaymentProviderError{StatusCode: 503}
	assert.False(t, unavailable.IsAuthError())
	assert.Contains(t, unavailable.Error(), "503")
}
