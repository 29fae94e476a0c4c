package mock_test

import (
	"fmt"
	"testing"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/blockchains/mock"
	"anarchy.ttfm/storefront/blockchains/testsuite"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/random"
	"anarchy.ttfm/storefront/utils"
	"github.com/stretchr/testify/assert"
)

type generator struct {
	m *mock.Mock
}

func (g *generator) address(network blockchains.Network) (address string) {
	return fmt.Sprintf("%s_%s", network, random.String(random.CryptoRand(), random.CharsetAlphaNumeric, 16))
}

func (g *generator) Funded(network blockchains.Network, amount decimal.Decimal, confirmations int) (req blockchains.CheckRequest) {
	req = blockchains.CheckRequest{Network: network, Address: g.address(network)}
	g.m.Set(req.Address, blockchains.Confirmation{Confirmations: confirmations, Received: amount, Balance: amount})
	return req
}

func (g *generator) Failing(network blockchains.Network) (req blockchains.CheckRequest) {
	req = blockchains.CheckRequest{Network: network, Address: g.address(network)}
	g.m.Fail(req.Address)
	return req
}

func (g *generator) Empty(network blockchains.Network) (req blockchains.CheckRequest) {
	return blockchains.CheckRequest{Network: network, Address: g.address(network)}
}

func Test_Mock(t *testing.T) {
	m := mock.New()
	testsuite.Test(t, m, &generator{m: m})
}

func Test_Script(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.NewContext()
	defer cancel()

	m := mock.New()
	m.Push("addr",
		mock.Response{Err: mock.ErrScripted},
		mock.Response{Confirmation: blockchains.Confirmation{Confirmations: 1}},
		mock.Response{Confirmation: blockchains.Confirmation{Confirmations: 2}},
	)

	req := blockchains.CheckRequest{Network: blockchains.NetworkBitcoin, Address: "addr"}

	_, err := m.Check(ctx, req)
	assertions.ErrorIs(err, blockchains.ErrConfirmationCheckFailed)

	confirmation, err := m.Check(ctx, req)
	assertions.Nil(err)
	assertions.Equal(1, confirmation.Confirmations)

	for range 3 {
		confirmation, err = m.Check(ctx, req)
		assertions.Nil(err)
		assertions.Equal(2, confirmation.Confirmations, "last response must stick")
	}
	assertions.Equal(5, m.Calls("addr"))
}
