package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, time.March, 10)

	raw, err := snapshotJSON.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-10"`, string(raw))

	var parsed Date
	require.NoError(t, snapshotJSON.Unmarshal(raw, &parsed))
	assert.True(t, parsed.Equal(d.Time))
}

func TestDateUnmarshalRejectsGarbage(t *testing.T) {
	var d Date
	assert.Error(t, snapshotJSON.Unmarshal([]byte(`"10/03/2024"`), &d))
	assert.Error(t, snapshotJSON.Unmarshal([]byte(`42`), &d))
}

func TestDateDaysSince(t *testing.T) {
	a := NewDate(2024, time.March, 10)
	b := a.AddDays(5)

	assert.Equal(t, 5, b.DaysSince(a))
	assert.Equal(t, -5, a.DaysSince(b))
	assert.Equal(t, 0, a.DaysSince(a))
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	d := DateOf(time.Date(2024, time.March, 10, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, "2024-03-10", d.String())
}

func TestPolicyFor(t *testing.T) {
	basic := PolicyFor(SubscriptionBasic)
	assert.Equal(t, 1, basic.MaxActiveLoans)
	assert.Equal(t, 14, basic.LoanDays)
	assert.InDelta(t, 0.50, basic.PenaltyPerDay, 1e-9)
	assert.Equal(t, 5, basic.MonthlyLoanCap)

	premium := PolicyFor(SubscriptionPremium)
	assert.Equal(t, 3, premium.MaxActiveLoans)
	assert.Equal(t, 21, premium.LoanDays)
	assert.InDelta(t, 0.25, premium.PenaltyPerDay, 1e-9)
	assert.Equal(t, 10, premium.MonthlyLoanCap)

	vip := PolicyFor(SubscriptionVIP)
	assert.Equal(t, 5, vip.MaxActiveLoans)
	assert.Equal(t, 28, vip.LoanDays)
	assert.Zero(t, vip.PenaltyPerDay)

	// Unknown tiers fall back to the most restrictive policy.
	assert.Equal(t, basic, PolicyFor(SubscriptionType("gold")))
}

func TestUserCanBorrow(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	newUser := func() *User {
		return &User{
			ID:       "u1",
			Username: "alice",
			Subscription: Subscription{
				Type:      SubscriptionBasic,
				ExpiresAt: DateOf(now).AddDays(30),
			},
			MonthlyCounterYearMonth: now.Format(yearMonthLayout),
		}
	}

	assert.True(t, newUser().CanBorrow(0, now))

	u := newUser()
	u.PenaltiesDue = 0.5
	assert.False(t, u.CanBorrow(0, now), "any outstanding penalty blocks")

	u = newUser()
	u.Subscription.ExpiresAt = DateOf(now).AddDays(-1)
	assert.False(t, u.CanBorrow(0, now), "expired subscription blocks")

	u = newUser()
	u.Subscription.ExpiresAt = DateOf(now)
	assert.True(t, u.CanBorrow(0, now), "expiry day itself still counts")

	assert.False(t, newUser().CanBorrow(1, now), "basic allows one active loan")

	u = newUser()
	u.MonthlyLoanCounter = 5
	assert.False(t, u.CanBorrow(0, now), "monthly cap reached")
}

func TestUserMonthlyCounterRollover(t *testing.T) {
	march := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	u := &User{
		Subscription: Subscription{
			Type:      SubscriptionBasic,
			ExpiresAt: DateOf(april).AddDays(30),
		},
		MonthlyLoanCounter:      5,
		MonthlyCounterYearMonth: march.Format(yearMonthLayout),
	}

	require.False(t, u.CanBorrow(0, march))

	assert.True(t, u.CanBorrow(0, april))
	assert.Equal(t, 0, u.MonthlyLoanCounter)
	assert.Equal(t, "2024-04", u.MonthlyCounterYearMonth)
}

func TestBookAvailableCopy(t *testing.T) {
	book := &Book{
		Copies: []BookCopy{
			{ID: "c1", Status: CopyLoaned},
			{ID: "c2", Status: CopyDamaged},
			{ID: "c3", Status: CopyAvailable},
		},
	}

	cp := book.AvailableCopy()
	require.NotNil(t, cp)
	assert.Equal(t, "c3", cp.ID)

	cp.Status = CopyLoaned
	assert.Nil(t, book.AvailableCopy())
}

func TestBookAverageRating(t *testing.T) {
	book := &Book{}
	_, ok := book.AverageRating()
	assert.False(t, ok)

	book.Ratings = []int{3, 4, 5}
	avg, ok := book.AverageRating()
	require.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-9)
}

func TestNormalizeRejectsUnknownEnums(t *testing.T) {
	state := NewLibraryState()
	state.Users["u1"] = &User{
		ID:       "u1",
		Username: "alice",
		Subscription: Subscription{
			Type:      SubscriptionType("platinum"),
			ExpiresAt: NewDate(2025, 1, 1),
		},
	}
	assert.Error(t, state.Normalize())

	state = NewLibraryState()
	state.Books["b1"] = &Book{
		ID:     "b1",
		Title:  "1984",
		Author: "George Orwell",
		Copies: []BookCopy{{ID: "c1", Status: CopyStatus("teleported")}},
	}
	assert.Error(t, state.Normalize())
}
