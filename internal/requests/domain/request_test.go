package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityFromScheduling(t *testing.T) {
	assert.Nil(t, ServiceRequest{}.Availability())

	req := ServiceRequest{Scheduling: &Scheduling{
		PreferredDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		PreferredTime: "14:00",
	}}
	av := req.Availability()
	require.NotNil(t, av)
	assert.Equal(t, time.Monday, av.Weekday)
	assert.Equal(t, "14:00", av.Time)
}
