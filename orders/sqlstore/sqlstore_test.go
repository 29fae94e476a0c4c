package sqlstore_test

import (
	"os"
	"testing"

	"anarchy.ttfm/storefront/orders/sqlstore"
	"anarchy.ttfm/storefront/orders/testsuite"
	"github.com/stretchr/testify/assert"
)

func Test_Postgres(t *testing.T) {
	dsn := os.Getenv("STOREFRONT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_POSTGRES_DSN not set")
	}

	assertions := assert.New(t)

	store, err := sqlstore.Open(sqlstore.Config{DSN: dsn})
	if !assertions.Nil(err, "failed to open store") {
		return
	}
	defer store.Close()

	testsuite.Test(t, store)
}
