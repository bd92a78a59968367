package dataset_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"exposureshield/pkg/breach/dataset"

	"github.com/stretchr/testify/require"
)

func TestLoad_JSON(t *testing.T) {
	d, err := dataset.Load(filepath.Join("testdata", "breaches.json"))
	require.NoError(t, err)
	require.Equal(t, 3, d.Len())

	records, err := d.Lookup(context.Background(), "  ALICE@example.COM\t")
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "Adobe", records[0].SourceName)
	require.Equal(t, "adobe.com", records[0].Domain)
	require.True(t, records[0].BreachDate.Equal(time.Date(2013, 10, 4, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, []string{"Email addresses", "Password hints", "Passwords", "Usernames"}, records[0].DataClasses)
	require.Equal(t, "LinkedIn", records[1].SourceName, "name is used when there is no title")

	records, err = d.Lookup(context.Background(), "bob@example.org")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Nil(t, records[0].BreachDate)
	require.NotNil(t, records[0].DataClasses)
}

func TestLoad_YAML(t *testing.T) {
	d, err := dataset.Load(filepath.Join("testdata", "breaches.yaml"))
	require.NoError(t, err)

	records, err := d.Lookup(context.Background(), "carol@example.net")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Dropbox", records[0].SourceName)
	require.True(t, records[0].BreachDate.Equal(time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	d, err := dataset.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Zero(t, d.Len())

	records, err := d.Lookup(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestLoad_Broken(t *testing.T) {
	_, err := dataset.Load(filepath.Join("testdata", "broken.json"))
	require.Error(t, err)
}

func TestLookup_NoPartialMatches(t *testing.T) {
	d := dataset.New([]dataset.Entry{{Email: "alice@example.com", Name: "Adobe"}})

	for _, email := range []string{"alice@example", "lice@example.com", "alice@example.com.evil", ""} {
		records, err := d.Lookup(context.Background(), email)
		require.NoError(t, err)
		require.Empty(t, records, email)
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	d := dataset.New([]dataset.Entry{{Email: "alice@example.com", Name: "Adobe"}})

	records, _ := d.Lookup(context.Background(), "alice@example.com")
	records[0].SourceName = "mutated"

	again, _ := d.Lookup(context.Background(), "alice@example.com")
	require.Equal(t, "Adobe", again[0].SourceName)
}
