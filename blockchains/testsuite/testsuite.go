package testsuite

import (
	"testing"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/utils"
	"github.com/stretchr/testify/assert"
)

// DataGenerator prepares addresses in the state each test expects.
type DataGenerator interface {
	// Funded returns an address on network that received amount, whose latest
	// transaction has depth confirmations
	Funded(network blockchains.Network, amount decimal.Decimal, confirmations int) (req blockchains.CheckRequest)
	// Failing returns an address whose lookup fails on the service side
	Failing(network blockchains.Network) (req blockchains.CheckRequest)
	// Empty returns an address that never received anything
	Empty(network blockchains.Network) (req blockchains.CheckRequest)
}

// Test runs the behaviour every Checker implementation must have
func Test(t *testing.T, checker blockchains.Checker, gen DataGenerator) {
	networks := []blockchains.Network{blockchains.NetworkBitcoin, blockchains.NetworkLitecoin}

	for _, network := range networks {
		t.Run(string(network), func(t *testing.T) {
			t.Run("Funded", func(t *testing.T) {
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				amount := decimal.MustParse("29.99")
				confirmation, err := checker.Check(ctx, gen.Funded(network, amount, 1))
				assertions.Nil(err, "failed to check funded address")
				assertions.Equal(1, confirmation.Confirmations, "invalid confirmations")
				assertions.True(amount.Equal(confirmation.Received), "invalid amount: %s", confirmation.Received)
			})
			t.Run("Clamped", func(t *testing.T) {
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				amount := decimal.MustParse("0.00012345")
				confirmation, err := checker.Check(ctx, gen.Funded(network, amount, 250))
				assertions.Nil(err, "failed to check funded address")
				assertions.Equal(blockchains.DefaultConfirmationCap, confirmation.Confirmations, "confirmations not clamped")
				assertions.True(amount.Equal(confirmation.Received), "invalid amount: %s", confirmation.Received)
			})
			t.Run("Empty", func(t *testing.T) {
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				confirmation, err := checker.Check(ctx, gen.Empty(network))
				assertions.Nil(err, "failed to check empty address")
				assertions.Equal(0, confirmation.Confirmations)
				assertions.True(confirmation.Received.IsZero(), "expecting nothing received")
			})
			t.Run("Failing", func(t *testing.T) {
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				_, err := checker.Check(ctx, gen.Failing(network))
				assertions.ErrorIs(err, blockchains.ErrConfirmationCheckFailed)
			})
		})
	}

	t.Run("Invalid network", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := checker.Check(ctx, blockchains.CheckRequest{Network: "dogecoin-main", Address: "D8vFz4p1L37jdg47HXKtSHA5uYLYxbGgPD"})
		assertions.ErrorIs(err, blockchains.ErrConfirmationCheckFailed)
		assertions.ErrorIs(err, blockchains.ErrInvalidNetwork)
	})
}
