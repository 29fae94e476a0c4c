package projection_test

import (
	"testing"

	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/projection"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func withDelivery(status orders.Status) (order orders.Order) {
	return orders.Order{
		Id:          uuid.New(),
		ProductName: "NetGuard VPN - 1 Year",
		Status:      status,
		LicenseKey:  "NETG-ABCD-EFGH-JKLM",
		DownloadUrl: "https://downloads.example.com/netguard.zip",
	}
}

func Test_Project(t *testing.T) {
	type Test struct {
		Status   orders.Status
		Message  string
		Revealed bool
	}
	tests := []Test{
		{Status: orders.StatusPending, Message: projection.MessagePending},
		{Status: orders.StatusConfirmed, Message: projection.MessageConfirmed},
		{Status: orders.StatusCompleted, Message: projection.MessageCompleted, Revealed: true},
	}
	for _, test := range tests {
		t.Run(string(test.Status), func(t *testing.T) {
			assertions := assert.New(t)

			view := projection.Project(withDelivery(test.Status))
			assertions.Equal(test.Message, view.Message)
			assertions.Equal(test.Revealed, view.Ready())
			if test.Revealed {
				assertions.Equal("NETG-ABCD-EFGH-JKLM", view.LicenseKey)
				assertions.Equal("https://downloads.example.com/netguard.zip", view.DownloadUrl)
			} else {
				assertions.Empty(view.LicenseKey, "key leaked before completion")
				assertions.Empty(view.DownloadUrl, "download leaked before completion")
			}
		})
	}
}

func Test_Summarize(t *testing.T) {
	assertions := assert.New(t)

	noKey := withDelivery(orders.StatusCompleted)
	noKey.LicenseKey = ""

	views := projection.ProjectAll([]orders.Order{
		withDelivery(orders.StatusPending),
		withDelivery(orders.StatusConfirmed),
		withDelivery(orders.StatusCompleted),
		noKey,
	})
	summary := projection.Summarize(views)
	assertions.Equal(projection.Summary{Total: 4, Completed: 2, InProgress: 2, Keys: 1}, summary)
}
