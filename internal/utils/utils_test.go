package utils

import (
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{in: "2024-05", want: Month{Year: 2024, Month: time.May}},
		{in: "1999-12", want: Month{Year: 1999, Month: time.December}},
		{in: " 2024-01 ", want: Month{Year: 2024, Month: time.January}},
		{in: "2024-13", wantErr: true},
		{in: "2024-00", wantErr: true},
		{in: "2024-ab", wantErr: true},
		{in: "abcd-05", wantErr: true},
		{in: "2024/05", wantErr: true},
		{in: "2024-5", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMonth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestMonthWindow(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Addis_Ababa")
	if err != nil {
		loc = time.FixedZone("EAT", 3*60*60)
	}

	m := Month{Year: 2024, Month: time.December}
	start := m.Start(loc)
	end := m.End(loc)

	assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, loc), end)
	assert.Equal(t, Month{Year: 2025, Month: time.January}, m.Next())
	assert.Equal(t, Month{Year: 2024, Month: time.November}, m.Prev())
	assert.True(t, m.Prev().Before(m))
	assert.Equal(t, "2024_12", m.FileSuffix())
}

func TestParseMonthOrCurrent(t *testing.T) {
	now := time.Date(2024, time.March, 31, 22, 30, 0, 0, time.UTC)
	plus3 := time.FixedZone("plus3", 3*60*60)

	m, err := ParseMonthOrCurrent("", now, plus3)
	require.NoError(t, err)
	assert.Equal(t, "2024-04", m.String())

	m, err = ParseMonthOrCurrent("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", m.String())
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		pw, err := GeneratePassword()
		require.NoError(t, err)
		assert.Len(t, pw, GeneratedPasswordLength)

		var upper, lower, digit bool
		for _, r := range pw {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		assert.True(t, upper && lower && digit, "password %q misses a character class", pw)
		seen[pw] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("S3cretPass")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "S3cretPass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour, 24*time.Hour)

	pair, err := tm.GeneratePair(42, "alice", true)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshTokenID)

	claims, err := tm.Parse(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.AgentID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.IsAdmin)

	refresh, err := tm.Parse(pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshTokenID, refresh.ID)

	_, err = tm.Parse(pair.RefreshToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	other := NewTokenManager("other-secret", time.Hour, time.Hour)
	_, err = other.Parse(pair.AccessToken, TokenTypeAccess)
	assert.Error(t, err)
}

func TestTokenManagerExpiry(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Minute)
	tm.now = func() time.Time { return issued }

	pair, err := tm.GeneratePair(1, "bob", false)
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.Parse(pair.AccessToken, TokenTypeAccess)
	assert.Error(t, err)

	_, err = tm.Parse(pair.RefreshToken, TokenTypeRefresh)
	assert.NoError(t, err)
}
