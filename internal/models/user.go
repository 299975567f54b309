package models

import "time"

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// User is the entitlement record for one messaging-platform user.
type User struct {
	UserID        int64      `json:"userId" db:"user_id"`
	Username      string     `json:"username,omitempty" db:"username"`
	FirstName     string     `json:"firstName,omitempty" db:"first_name"`
	Tier          Tier       `json:"tier" db:"tier"`
	FetchCount    int        `json:"fetchCount" db:"fetch_count"`
	TotalFetches  int        `json:"totalFetches" db:"total_fetches"`
	LastFetchDate *time.Time `json:"lastFetchDate,omitempty" db:"last_fetch_date"`
	JoinDate      time.Time  `json:"joinDate" db:"join_date"`
	Banned        bool       `json:"banned" db:"banned"`
	Expiration    *time.Time `json:"expiration,omitempty" db:"expiration"`
}

// NewFreeUser returns a fresh free-tier record joined at now.
func NewFreeUser(userID int64, username, firstName string, now time.Time) *User {
	return &User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		Tier:      TierFree,
		JoinDate:  now.UTC(),
	}
}

// IsPremium reports the stored tier, ignoring expiration.
func (u *User) IsPremium() bool {
	return u.Tier == TierPremium
}

// PremiumExpired reports whether the premium grant has passed its expiration at now.
func (u *User) PremiumExpired(now time.Time) bool {
	return u.IsPremium() && u.Expiration != nil && !now.Before(*u.Expiration)
}

// FetchedOn reports whether the last fetch fell on the same UTC day as now.
func (u *User) FetchedOn(now time.Time) bool {
	if u.LastFetchDate == nil {
		return false
	}
	return SameUTCDay(*u.LastFetchDate, now)
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Username      *string
	FirstName     *string
	Tier          *Tier
	FetchCount    *int
	TotalFetches  *int
	LastFetchDate *time.Time
	Banned        *bool
	Expiration    *time.Time
	ClearExpiry   bool
}

// Apply merges the set fields of upd into u.
func (upd UserUpdate) Apply(u *User) {
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.Tier != nil {
		u.Tier = *upd.Tier
	}
	if upd.FetchCount != nil {
		u.FetchCount = *upd.FetchCount
	}
	if upd.TotalFetches != nil {
		u.TotalFetches = *upd.TotalFetches
	}
	if upd.LastFetchDate != nil {
		t := upd.LastFetchDate.UTC()
		u.LastFetchDate = &t
	}
	if upd.Banned != nil {
		u.Banned = *upd.Banned
	}
	if upd.Expiration != nil {
		t := upd.Expiration.UTC()
		u.Expiration = &t
	}
	if upd.ClearExpiry {
		u.Expiration = nil
	}
}

// SameUTCDay compares calendar dates in UTC.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func IntPtr(v int) *int { return &v }
func BoolPtr(v bool) *bool { return &v }
func TierPtr(v Tier) *Tier { return &v }
func TimePtr(v time.Time) *time.Time { return &v }
func StringPtr(v string) *string { return &v }
